package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestIDGeneratesWhenAbsent(t *testing.T) {
	var seen string
	handler := withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "http://example.com/", nil))

	if seen == "" {
		t.Fatal("expected a generated request id in the context")
	}
	if got := w.Header().Get(requestIDHeader); got != seen {
		t.Fatalf("expected response header %q to match context id %q", got, seen)
	}
}

func TestWithRequestIDKeepsCallerSuppliedID(t *testing.T) {
	var seen string
	handler := withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.Header.Set(requestIDHeader, "caller-id-1")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if seen != "caller-id-1" {
		t.Fatalf("expected caller supplied id, got %q", seen)
	}
}
