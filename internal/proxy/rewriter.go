// Package proxy rewrites verified requests for their upstream and streams
// them through.
package proxy

import (
	"net/http"
	"regexp"

	"github.com/danthegoodman1/IAMTheService/internal/sigv4"
)

var signatureTokenPattern = regexp.MustCompile(`Signature=[^,]+`)

// RewriteForHost points the request at the upstream host and, when the host
// header is covered by the signature, re-signs it and swaps the Signature=
// token inside the Authorization header in place. Credential= and
// SignedHeaders= are untouched: the scope and header set are the client's;
// only the value of the rewritten Host header changed.
//
// The signature is recomputed with the same derived key material the client
// used, so a downstream SigV4 verifier sees a valid request for the new host.
func RewriteForHost(r *http.Request, auth sigv4.Authorization, secret string, upstreamHost string) {
	r.Host = upstreamHost
	if !auth.SignsHeader("host") {
		return
	}

	signature := sigv4.Sign(r, auth, secret)
	if original := r.Header.Get("Authorization"); original != "" {
		r.Header.Set("Authorization", signatureTokenPattern.ReplaceAllString(original, "Signature="+signature))
	}
}
