package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danthegoodman1/IAMTheService/internal/credentials"
	"github.com/danthegoodman1/IAMTheService/internal/gatewaymetrics"
	"github.com/danthegoodman1/IAMTheService/internal/proxy"
	"github.com/danthegoodman1/IAMTheService/internal/ratelimit"
	"github.com/danthegoodman1/IAMTheService/internal/sigv4"
	"github.com/danthegoodman1/IAMTheService/internal/upstream"
)

// rateLimitStage asks the limiter for admission. Only admitted requests are
// recorded against the window; rejected attempts do not extend it, so a
// limited client regains admission once the window slides past its last
// admitted request.
type rateLimitStage struct {
	limiter *ratelimit.Limiter
	metrics *gatewaymetrics.Metrics
}

func (s *rateLimitStage) Name() string { return "rate_limit" }

func (s *rateLimitStage) Process(state *State) error {
	if s.limiter == nil {
		return nil
	}
	if !s.limiter.Allow(state.ClientIP, time.Now()) {
		s.metrics.RateLimitTotal.WithLabelValues("limited").Inc()
		return fmt.Errorf("client %s: %w", state.ClientIP, ErrRateLimited)
	}
	s.metrics.RateLimitTotal.WithLabelValues("allowed").Inc()
	return nil
}

// bodySizeStage rejects declared-oversize bodies up front and wraps the body
// so chunked uploads that cross the cap abort mid-stream instead of buffering.
type bodySizeStage struct {
	maxBytes int64
}

func (s *bodySizeStage) Name() string { return "body_size" }

func (s *bodySizeStage) Process(state *State) error {
	if state.R.ContentLength >= s.maxBytes {
		return fmt.Errorf("declared %d bytes: %w", state.R.ContentLength, ErrPayloadTooLarge)
	}
	if state.R.Body != nil && state.R.Body != http.NoBody {
		state.R.Body = &cappedBody{rc: state.R.Body, remaining: s.maxBytes}
	}
	return nil
}

// cappedBody fails the stream once more than remaining bytes have been read.
type cappedBody struct {
	rc        io.ReadCloser
	remaining int64
	exceeded  bool
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.exceeded {
		return 0, ErrPayloadTooLarge
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	if b.remaining <= 0 {
		b.exceeded = true
		return n, ErrPayloadTooLarge
	}
	return n, err
}

func (b *cappedBody) Close() error { return b.rc.Close() }

// timeoutStage attaches the end-to-end deadline. Everything downstream,
// including the upstream round trip, inherits it through the request context.
type timeoutStage struct {
	timeout time.Duration
}

func (s *timeoutStage) Name() string { return "timeout" }

func (s *timeoutStage) Process(state *State) error {
	ctx, cancel := context.WithTimeout(state.R.Context(), s.timeout)
	state.R = state.R.WithContext(ctx)
	state.cancel = cancel
	return nil
}

// verifyStage parses the Authorization header, resolves the access key to
// its secret, recomputes the signature, and compares in constant time.
type verifyStage struct {
	store credentials.Store
}

func (s *verifyStage) Name() string { return "verify" }

func (s *verifyStage) Process(state *State) error {
	auth, err := sigv4.ParseAuthorization(state.R)
	if err != nil {
		return err
	}
	switch {
	case !auth.HasScope:
		return fmt.Errorf("%w: no Credential scope", ErrIncompleteAuthorization)
	case !auth.HasSignedHeaders:
		return fmt.Errorf("%w: no SignedHeaders", ErrIncompleteAuthorization)
	case !auth.HasSignature:
		return fmt.Errorf("%w: no Signature", ErrIncompleteAuthorization)
	case state.R.Header.Get(sigv4.AmzDateHeader) == "":
		return fmt.Errorf("%w: no %s header", ErrIncompleteAuthorization, sigv4.AmzDateHeader)
	}

	secret, err := s.store.Lookup(state.R.Context(), auth.Scope.AccessKeyID)
	if err != nil {
		return fmt.Errorf("lookup %q: %w", auth.Scope.AccessKeyID, err)
	}

	computed := sigv4.Sign(state.R, auth, secret)
	if !sigv4.VerifySignature(auth.Signature, computed) {
		return fmt.Errorf("access key %q: %w", auth.Scope.AccessKeyID, ErrSignatureMismatch)
	}

	state.Auth = auth
	state.Secret = secret
	return nil
}

// resignStage picks the upstream for the inbound host and rewrites the
// request to target it, re-signing when the host header was signed.
type resignStage struct {
	router upstream.Router
}

func (s *resignStage) Name() string { return "resign" }

func (s *resignStage) Process(state *State) error {
	target, err := s.router.Resolve(state.R.Host, state.R.URL.Path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", state.R.Host, err)
	}
	proxy.RewriteForHost(state.R, state.Auth, state.Secret, target.Host)
	state.Target = target
	return nil
}

// forwardStage streams the request to the upstream and the response back.
type forwardStage struct {
	forwarder *proxy.Forwarder
	metrics   *gatewaymetrics.Metrics
}

func (s *forwardStage) Name() string { return "forward" }

func (s *forwardStage) Process(state *State) error {
	start := time.Now()
	status, err := s.forwarder.Forward(state.R.Context(), state.W, state.R, state.Target)
	if status > 0 {
		state.Responded = true
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	s.metrics.UpstreamRequests.WithLabelValues(outcome).Inc()
	s.metrics.UpstreamLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return err
}
