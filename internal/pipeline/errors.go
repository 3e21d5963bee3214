package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/danthegoodman1/IAMTheService/internal/credentials"
	"github.com/danthegoodman1/IAMTheService/internal/proxy"
	"github.com/danthegoodman1/IAMTheService/internal/sigv4"
	"github.com/danthegoodman1/IAMTheService/internal/upstream"
)

var (
	// ErrRateLimited rejects a request over its client's admission budget.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrPayloadTooLarge rejects a body over the configured cap.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrIncompleteAuthorization rejects an Authorization header missing a
	// required component (Credential scope, SignedHeaders, Signature, or the
	// X-Amz-Date header).
	ErrIncompleteAuthorization = errors.New("incomplete authorization")

	// ErrSignatureMismatch rejects a request whose signature does not verify.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrOverloaded rejects a request when the admission buffer is full.
	ErrOverloaded = errors.New("server overloaded")
)

// statusFor maps a terminal stage failure to its response. Order matters:
// a deadline error may sit inside an upstream transport error, and the body
// cap error surfaces through the upstream client's error chain, so the more
// specific causes are checked first.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate limit exceeded"
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload too large"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, ErrOverloaded):
		return http.StatusServiceUnavailable, "server overloaded"
	case errors.Is(err, sigv4.ErrMissingAuthorization),
		errors.Is(err, sigv4.ErrMalformedAuthorization),
		errors.Is(err, ErrIncompleteAuthorization):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, credentials.ErrUnknownCredential),
		errors.Is(err, ErrSignatureMismatch):
		// One message for both: which part of authentication failed is not
		// for the caller to know.
		return http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, upstream.ErrNoUpstream):
		return http.StatusBadGateway, "no upstream for host"
	case errors.Is(err, proxy.ErrUpstreamUnreachable):
		return http.StatusBadGateway, "upstream unreachable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
