package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUpstreamUnreachable marks upstream connection or transport failures so
// the boundary can map them to 502.
var ErrUpstreamUnreachable = errors.New("upstream unreachable")

// hopByHopHeaders must not be forwarded verbatim in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder issues upstream requests with streamed bodies and streams the
// responses back. A single Forwarder is shared by all requests; its client's
// connection pool is the only state.
type Forwarder struct {
	client *http.Client
}

// NewForwarder builds a Forwarder around a pooled transport. Per-request
// deadlines come from the request context, so the client itself has no
// timeout.
func NewForwarder() *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        256,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
			// The proxy forwards redirects to the client untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// upstreamError wraps a transport failure. It matches ErrUpstreamUnreachable
// via errors.Is while keeping the cause chain intact, so a request-body or
// deadline error inside it stays visible to errors.Is as well.
type upstreamError struct {
	err error
}

func (e *upstreamError) Error() string { return "upstream request failed: " + e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }
func (e *upstreamError) Is(target error) bool {
	return target == ErrUpstreamUnreachable
}

// Forward sends the (already rewritten) request to the resolved upstream and
// streams the response to w. The request body is handed to the transport as a
// stream; neither direction is buffered in full. Exactly one upstream attempt
// is made.
func (f *Forwarder) Forward(ctx context.Context, w http.ResponseWriter, r *http.Request, target *url.URL) (int, error) {
	outURL := *r.URL
	outURL.Scheme = target.Scheme
	outURL.Host = target.Host
	outURL.Path = joinPath(target.Path, r.URL.Path)
	outURL.RawPath = ""

	req, err := http.NewRequestWithContext(ctx, r.Method, outURL.String(), r.Body)
	if err != nil {
		return 0, fmt.Errorf("build upstream request: %w", err)
	}
	req.Host = r.Host
	req.ContentLength = r.ContentLength
	req.Header = r.Header.Clone()
	for _, h := range hopByHopHeaders {
		req.Header.Del(h)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return 0, &upstreamError{err: err}
	}
	defer res.Body.Close()

	copyResponseHeaders(w.Header(), res.Header)
	w.WriteHeader(res.StatusCode)

	// Pure passthrough: the body is opaque bytes, copied chunk by chunk as
	// the client drains them.
	if _, err := io.Copy(w, res.Body); err != nil {
		// The status line is already out; nothing to do but surface it.
		return res.StatusCode, fmt.Errorf("stream upstream response: %w", err)
	}
	return res.StatusCode, nil
}

func copyResponseHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
	if dst.Get("Content-Type") == "" {
		dst.Set("Content-Type", "application/octet-stream")
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// joinPath joins the upstream base path with the inbound request path without
// doubling or dropping the slash between them.
func joinPath(base, request string) string {
	switch {
	case base == "" || base == "/":
		if request == "" {
			return "/"
		}
		return request
	case strings.HasSuffix(base, "/") && strings.HasPrefix(request, "/"):
		return base + strings.TrimPrefix(request, "/")
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(request, "/") && request != "":
		return base + "/" + request
	default:
		return base + request
	}
}
