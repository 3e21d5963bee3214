package sigv4

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// StringToSign builds the final signing input:
//
//	AWS4-HMAC-SHA256
//	<X-Amz-Date>
//	<date8>/<region>/<service>/aws4_request
//	hex(sha256(canonicalRequest))
func StringToSign(amzDate string, scope CredentialScope, canonicalRequest string) string {
	var b strings.Builder
	b.WriteString(SigningAlgorithm)
	b.WriteByte('\n')
	b.WriteString(amzDate)
	b.WriteByte('\n')
	b.WriteString(shortDate(amzDate) + "/" + scope.Region + "/" + scope.Service + "/" + scopeTerminator)
	b.WriteByte('\n')
	b.WriteString(sha256Hex([]byte(canonicalRequest)))
	return b.String()
}

// Sign computes the hex SigV4 signature for the request's current state.
// It is a pure function of the request, the signed-header list, and the
// secret: signing the same inputs twice yields byte-identical output. The
// same computation serves verification of inbound requests and re-signing of
// rewritten ones.
func Sign(r *http.Request, auth Authorization, secret string) string {
	canonicalRequest := CanonicalRequest(r, auth.SignedHeaders)
	amzDate := r.Header.Get(AmzDateHeader)
	stringToSign := StringToSign(amzDate, auth.Scope, canonicalRequest)
	key := SigningKey(secret, shortDate(amzDate), auth.Scope.Region, auth.Scope.Service)
	return hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))
}

// VerifySignature compares a provided signature against a computed one in
// constant time. Empty signatures never verify: an absent Signature token
// must not match an accidentally-empty computation.
func VerifySignature(provided, computed string) bool {
	if provided == "" || computed == "" {
		return false
	}
	if len(provided) != len(computed) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(computed)) == 1
}

// shortDate is the credential-scope date: the first 8 characters of an
// X-Amz-Date value. Shorter input is returned unchanged; the resulting
// signature simply will not verify.
func shortDate(amzDate string) string {
	if len(amzDate) < 8 {
		return amzDate
	}
	return amzDate[:8]
}
