package sigv4

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingAuthorization is returned when the request carries no Authorization header.
	ErrMissingAuthorization = errors.New("missing Authorization header")

	// ErrMalformedAuthorization is returned when the Authorization header cannot be parsed
	// at all, e.g. a different auth scheme.
	ErrMalformedAuthorization = errors.New("malformed Authorization header")
)

// CredentialScope is the 5-part scope from the Credential= token:
// accessKeyID/date/region/service/aws4_request.
type CredentialScope struct {
	AccessKeyID string
	Date        string
	Region      string
	Service     string
	Terminator  string
}

// String renders the scope without the access key id, the form used in the
// string to sign.
func (s CredentialScope) String() string {
	return s.Date + "/" + s.Region + "/" + s.Service + "/" + s.Terminator
}

// ParseCredentialScope splits the Credential= value. The scope must have
// exactly 5 slash-delimited parts.
func ParseCredentialScope(raw string) (CredentialScope, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 5 {
		return CredentialScope{}, fmt.Errorf("credential scope has %d parts, want 5", len(parts))
	}
	return CredentialScope{
		AccessKeyID: parts[0],
		Date:        parts[1],
		Region:      parts[2],
		Service:     parts[3],
		Terminator:  parts[4],
	}, nil
}

// Authorization is the parsed SigV4 Authorization header. It is immutable
// once built; absence of a component is recorded explicitly rather than as a
// zero value, so callers can tell "not provided" from "provided empty".
type Authorization struct {
	Scope            CredentialScope
	HasScope         bool
	SignedHeaders    []string
	HasSignedHeaders bool
	Signature        string
	HasSignature     bool
}

// SignsHeader reports whether the named header is covered by the signature.
func (a Authorization) SignsHeader(name string) bool {
	for _, h := range a.SignedHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// authorizationBuilder accumulates parsed tokens and produces the immutable
// Authorization once the header has been consumed.
type authorizationBuilder struct {
	scope         *CredentialScope
	signedHeaders []string
	signature     *string
}

func (b *authorizationBuilder) build() Authorization {
	auth := Authorization{}
	if b.scope != nil {
		auth.Scope = *b.scope
		auth.HasScope = true
	}
	if b.signedHeaders != nil {
		auth.SignedHeaders = b.signedHeaders
		auth.HasSignedHeaders = true
	}
	if b.signature != nil {
		auth.Signature = *b.signature
		auth.HasSignature = true
	}
	return auth
}

// ParseAuthorization parses the request's Authorization header.
//
// The header looks like
//
//	Authorization: AWS4-HMAC-SHA256 Credential=AKID/20130524/us-east-1/s3/aws4_request, SignedHeaders=host;range;x-amz-date, Signature=fe5f80f7...
//
// Tokens are whitespace-separated with trailing commas stripped. A missing or
// malformed Credential/SignedHeaders/Signature token leaves that component
// absent rather than failing the parse; downstream verification rejects the
// request when it matters.
func ParseAuthorization(r *http.Request) (Authorization, error) {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		return Authorization{}, ErrMissingAuthorization
	}

	fields := strings.Fields(raw)
	if len(fields) == 0 || fields[0] != SigningAlgorithm {
		return Authorization{}, fmt.Errorf("%w: expected scheme %s", ErrMalformedAuthorization, SigningAlgorithm)
	}

	b := &authorizationBuilder{}
	for _, field := range fields[1:] {
		field = strings.TrimSuffix(field, ",")
		switch {
		case strings.HasPrefix(field, "Credential="):
			scope, err := ParseCredentialScope(strings.TrimPrefix(field, "Credential="))
			if err != nil {
				continue
			}
			b.scope = &scope
		case strings.HasPrefix(field, "SignedHeaders="):
			value := strings.TrimPrefix(field, "SignedHeaders=")
			// Some clients separate with commas instead of semicolons.
			value = strings.ReplaceAll(value, ",", ";")
			b.signedHeaders = strings.Split(value, ";")
		case strings.HasPrefix(field, "Signature="):
			sig := strings.TrimPrefix(field, "Signature=")
			b.signature = &sig
		}
	}
	return b.build(), nil
}
