package sigv4

import (
	"net/http"
	"strings"
)

// CanonicalRequest serializes the signed parts of the request, newline-joined:
//
//	METHOD
//	path
//	rawQuery
//	name:value        (one line per signed header, in SignedHeaders order)
//
//	signed;header;names
//	payload-hash-marker
//
// The signed-header list order from the Authorization header determines the
// header block order, not the order headers arrived in. The path and query
// are taken as-is from the request target; header names and values are not
// normalized beyond Go's header canonicalization on lookup.
func CanonicalRequest(r *http.Request, signedHeaders []string) string {
	var b strings.Builder

	b.WriteString(r.Method)
	b.WriteByte('\n')

	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	b.WriteString(path)
	b.WriteByte('\n')

	b.WriteString(r.URL.RawQuery)
	b.WriteByte('\n')

	for _, name := range signedHeaders {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(headerValue(r, name))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	b.WriteString(strings.Join(signedHeaders, ";"))
	b.WriteByte('\n')

	b.WriteString(PayloadHash(r))
	return b.String()
}

// PayloadHash returns the payload-hash marker for the request: the
// x-amz-content-sha256 header when present, UNSIGNED-PAYLOAD otherwise.
func PayloadHash(r *http.Request) string {
	if h := r.Header.Get(ContentSHA256Header); h != "" {
		return h
	}
	return UnsignedPayload
}

// headerValue returns the current value of a signed header. The Host header
// lives on Request.Host, not in the header map, on both server and client
// requests.
func headerValue(r *http.Request, name string) string {
	if strings.EqualFold(name, "host") {
		return strings.TrimSpace(r.Host)
	}
	return r.Header.Get(name)
}
