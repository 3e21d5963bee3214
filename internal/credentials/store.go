// Package credentials maps SigV4 access key ids to secret keys.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrUnknownCredential is returned when no secret exists for an access key id.
// It is distinct from storage failures so callers can map it to an auth
// rejection instead of a server error.
var ErrUnknownCredential = errors.New("unknown access key id")

// Store looks up the secret key for an access key id.
type Store interface {
	Lookup(ctx context.Context, accessKeyID string) (string, error)
}

// StaticStore serves credentials from an in-memory map. Useful for
// single-tenant deployments and tests.
type StaticStore struct {
	m map[string]string
}

// NewStaticStore copies the given map into a StaticStore.
func NewStaticStore(m map[string]string) *StaticStore {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return &StaticStore{m: out}
}

// NewStaticStoreFromEnv builds a StaticStore from an env var holding a JSON
// object like {"AKID":"secret"}.
func NewStaticStoreFromEnv(envVar string) (*StaticStore, error) {
	m := map[string]string{}
	raw := strings.TrimSpace(os.Getenv(envVar))
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", envVar, err)
		}
	}
	return NewStaticStore(m), nil
}

func (s *StaticStore) Lookup(_ context.Context, accessKeyID string) (string, error) {
	secret, ok := s.m[accessKeyID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCredential, accessKeyID)
	}
	return secret, nil
}

// AccessKeyIDs returns the known ids, sorted, for diagnostics.
func (s *StaticStore) AccessKeyIDs() []string {
	ids := make([]string, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
