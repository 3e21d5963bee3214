// Package pipeline runs every proxied request through a fixed, ordered list
// of stages. Each stage either passes the request on or fails it with an
// error that maps to exactly one HTTP status.
package pipeline

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danthegoodman1/IAMTheService/internal/credentials"
	"github.com/danthegoodman1/IAMTheService/internal/gatewaymetrics"
	"github.com/danthegoodman1/IAMTheService/internal/proxy"
	"github.com/danthegoodman1/IAMTheService/internal/ratelimit"
	"github.com/danthegoodman1/IAMTheService/internal/sigv4"
	"github.com/danthegoodman1/IAMTheService/internal/upstream"
)

const (
	// DefaultMaxBodyBytes caps request bodies at one million bytes.
	DefaultMaxBodyBytes = 1_000_000

	// DefaultRequestTimeout bounds a request end to end.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultAdmissionCapacity bounds how many requests may be inside the
	// pipeline at once before new arrivals are turned away.
	DefaultAdmissionCapacity = 1024
)

// State carries one request through the stages. Stages mutate it in place.
type State struct {
	W        http.ResponseWriter
	R        *http.Request
	ClientIP string
	Log      zerolog.Logger

	// Populated by the verification stage.
	Auth   sigv4.Authorization
	Secret string

	// Populated by the routing stage.
	Target *url.URL

	// Set once response headers have been written; after that point a
	// failure can only be logged, not turned into an error response.
	Responded bool

	cancel context.CancelFunc
}

// Stage is one step of the request pipeline.
type Stage interface {
	Name() string
	Process(state *State) error
}

// Config holds the pipeline's tunables. Zero values fall back to defaults.
type Config struct {
	MaxBodyBytes      int64
	RequestTimeout    time.Duration
	AdmissionCapacity int
}

// Deps are the collaborators the pipeline is wired with. Nothing here is
// reached through package state; swapping any piece in tests is a field
// assignment.
type Deps struct {
	Limiter     *ratelimit.Limiter
	Credentials credentials.Store
	Router      upstream.Router
	Forwarder   *proxy.Forwarder
	Metrics     *gatewaymetrics.Metrics
	ClientIP    func(*http.Request) string
	Logger      zerolog.Logger
}

// Pipeline is an http.Handler running the fixed stage list:
// rate limit, body size, timeout, verify, re-sign, forward.
type Pipeline struct {
	stages    []Stage
	admission chan struct{}
	deps      Deps
}

// New builds the pipeline. The stage list is assembled here, in order, so
// the whole request path is readable in one place.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.AdmissionCapacity <= 0 {
		cfg.AdmissionCapacity = DefaultAdmissionCapacity
	}
	if deps.ClientIP == nil {
		deps.ClientIP = remoteAddrIP
	}
	return &Pipeline{
		stages: []Stage{
			&rateLimitStage{limiter: deps.Limiter, metrics: deps.Metrics},
			&bodySizeStage{maxBytes: cfg.MaxBodyBytes},
			&timeoutStage{timeout: cfg.RequestTimeout},
			&verifyStage{store: deps.Credentials},
			&resignStage{router: deps.Router},
			&forwardStage{forwarder: deps.Forwarder, metrics: deps.Metrics},
		},
		admission: make(chan struct{}, cfg.AdmissionCapacity),
		deps:      deps,
	}
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case p.admission <- struct{}{}:
		defer func() { <-p.admission }()
	default:
		p.deps.Metrics.StageRejects.WithLabelValues("admission").Inc()
		status, msg := statusFor(ErrOverloaded)
		http.Error(w, msg, status)
		return
	}

	p.deps.Metrics.RequestsInFlight.Inc()
	defer p.deps.Metrics.RequestsInFlight.Dec()

	state := &State{
		W:        w,
		R:        r,
		ClientIP: p.deps.ClientIP(r),
		Log: p.deps.Logger.With().
			Str("method", r.Method).
			Str("host", r.Host).
			Str("path", r.URL.Path).
			Logger(),
	}
	defer func() {
		if state.cancel != nil {
			state.cancel()
		}
	}()

	start := time.Now()
	for _, stage := range p.stages {
		if err := stage.Process(state); err != nil {
			p.fail(state, stage, err)
			return
		}
	}
	ev := state.Log.Debug().
		Dur("duration", time.Since(start)).
		Str("upstream", state.Target.Host)
	if strings.HasPrefix(strings.ToLower(state.Target.Host), "s3.") {
		ev = ev.Str("s3_operation", upstream.S3Operation(state.R.Method, state.R.URL.Path, state.R.URL.Query()))
	}
	ev.Msg("request proxied")
}

// fail turns a stage error into the response for this request. When the
// forward stage already streamed response headers the connection is past
// saving and the error is only logged.
func (p *Pipeline) fail(state *State, stage Stage, err error) {
	p.deps.Metrics.StageRejects.WithLabelValues(
		gatewaymetrics.NormalizeLabel(stage.Name(), "unknown")).Inc()

	status, msg := statusFor(err)
	ev := state.Log.Warn().
		Str("stage", stage.Name()).
		Int("status", status).
		Err(err)
	if state.Responded {
		ev.Msg("request failed after response started")
		return
	}
	ev.Msg("request rejected")
	http.Error(state.W, msg, status)
}

func remoteAddrIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
