// Package upstream resolves inbound hosts to upstream base URLs.
package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// ErrNoUpstream is returned when no upstream is known for the inbound host.
var ErrNoUpstream = errors.New("no upstream for host")

// Router maps an inbound request to the upstream base URL it should be
// forwarded to. Implementations are pure: the same (host, path) always
// resolves to the same target.
type Router interface {
	Resolve(requestHost, requestPath string) (*url.URL, error)
}

// HostMapRouter resolves from a static map of inbound host to upstream base
// URL. Ports on the inbound host are ignored for matching.
type HostMapRouter struct {
	targets map[string]*url.URL
}

// NewHostMapRouter parses and validates the target URLs. Entries without a
// scheme default to https.
func NewHostMapRouter(hosts map[string]string) (*HostMapRouter, error) {
	targets := make(map[string]*url.URL, len(hosts))
	for host, raw := range hosts {
		target, err := parseBaseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("upstream for %q: %w", host, err)
		}
		targets[strings.ToLower(strings.TrimSpace(host))] = target
	}
	return &HostMapRouter{targets: targets}, nil
}

// NewHostMapRouterFromEnv builds a HostMapRouter from an env var holding a
// JSON object like {"inbound.example.com":"https://backend.internal"}.
func NewHostMapRouterFromEnv(envVar string) (*HostMapRouter, error) {
	m := map[string]string{}
	raw := strings.TrimSpace(os.Getenv(envVar))
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", envVar, err)
		}
	}
	return NewHostMapRouter(m)
}

func (r *HostMapRouter) Resolve(requestHost, _ string) (*url.URL, error) {
	target, ok := r.targets[normalizeHost(requestHost)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoUpstream, requestHost)
	}
	// Copy so callers can mutate the result.
	out := *target
	return &out, nil
}

// Len reports the number of configured hosts.
func (r *HostMapRouter) Len() int {
	return len(r.targets)
}

// ServiceRouter derives the upstream from the first label of the inbound
// host: s3.gateway.example.com forwards to s3.<suffix>, with optional
// per-service overrides. This mirrors the AWS convention of
// <service>.amazonaws.com endpoints.
type ServiceRouter struct {
	suffix    string
	overrides map[string]*url.URL
}

// NewServiceRouter builds a ServiceRouter with the given endpoint suffix
// (default amazonaws.com) and per-service override base URLs.
func NewServiceRouter(suffix string, overrides map[string]string) (*ServiceRouter, error) {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		suffix = "amazonaws.com"
	}
	parsed := make(map[string]*url.URL, len(overrides))
	for service, raw := range overrides {
		target, err := parseBaseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("override for %q: %w", service, err)
		}
		parsed[strings.ToLower(strings.TrimSpace(service))] = target
	}
	return &ServiceRouter{suffix: suffix, overrides: parsed}, nil
}

func (r *ServiceRouter) Resolve(requestHost, _ string) (*url.URL, error) {
	host := normalizeHost(requestHost)
	service, _, found := strings.Cut(host, ".")
	if !found || service == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoUpstream, requestHost)
	}
	if target, ok := r.overrides[service]; ok {
		out := *target
		return &out, nil
	}
	return &url.URL{Scheme: "https", Host: service + "." + r.suffix}, nil
}

func normalizeHost(requestHost string) string {
	host := strings.ToLower(strings.TrimSpace(requestHost))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty target")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if target.Host == "" {
		return nil, fmt.Errorf("target %q has no host", raw)
	}
	return target, nil
}
