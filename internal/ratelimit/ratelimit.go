// Package ratelimit provides a per-client sliding-window admission limiter.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

const DefaultWindow = time.Minute

// Limiter admits up to capacity requests per client within a trailing window.
// It is safe for concurrent use and must be constructed once and shared; there
// is no package-level instance.
type Limiter struct {
	mu         sync.Mutex
	capacity   int
	window     time.Duration
	lastPruned time.Time
	clients    map[string][]time.Time
}

// New returns a Limiter allowing capacity requests per window per client key.
// A capacity <= 0 disables limiting.
func New(capacity int, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		capacity: capacity,
		window:   window,
		clients:  make(map[string][]time.Time, 128),
	}
}

// Allow records and admits the request when fewer than capacity requests from
// this client fall within the trailing window ending at now. The admission is
// recorded unconditionally on success; later cancellation of the request does
// not undo it.
func (l *Limiter) Allow(key string, now time.Time) bool {
	if l == nil || l.capacity <= 0 {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneStaleLocked(now)

	recent := trimBefore(l.clients[key], cutoff)
	if len(recent) >= l.capacity {
		l.clients[key] = recent
		return false
	}
	l.clients[key] = append(recent, now)
	return true
}

// trimBefore drops timestamps at or before the cutoff. Timestamps are
// appended in order, so the slice stays sorted.
func trimBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	return stamps[idx:]
}

// pruneStaleLocked evicts clients whose entire history is outside the window,
// at most once per window, to bound memory under client churn.
func (l *Limiter) pruneStaleLocked(now time.Time) {
	if !l.lastPruned.IsZero() && now.Sub(l.lastPruned) < l.window {
		return
	}
	cutoff := now.Add(-l.window)
	for key, stamps := range l.clients {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.clients, key)
		}
	}
	l.lastPruned = now
}

// Len reports the number of tracked clients, for tests and introspection.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
