package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLimiterAdmitsCapacityThenRejects(t *testing.T) {
	limiter := New(10, time.Minute)
	now := time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if !limiter.Allow("192.0.2.1", now.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("expected request %d to be admitted", i+1)
		}
	}
	if limiter.Allow("192.0.2.1", now.Add(30*time.Second)) {
		t.Fatal("expected 11th request within the window to be rejected")
	}
	if !limiter.Allow("192.0.2.1", now.Add(61*time.Second)) {
		t.Fatal("expected request after the window elapsed to be admitted")
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	limiter := New(2, time.Minute)
	now := time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC)

	if !limiter.Allow("c", now) {
		t.Fatal("first request should pass")
	}
	if !limiter.Allow("c", now.Add(50*time.Second)) {
		t.Fatal("second request should pass")
	}
	// 70s: the first request has aged out, the second has not.
	if !limiter.Allow("c", now.Add(70*time.Second)) {
		t.Fatal("request after first admission aged out should pass")
	}
	// 80s: requests at 50s and 70s are both still inside the trailing window.
	if limiter.Allow("c", now.Add(80*time.Second)) {
		t.Fatal("third request inside the trailing window should be rejected")
	}
}

func TestLimiterRejectionsDoNotExtendWindow(t *testing.T) {
	limiter := New(1, time.Minute)
	now := time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC)

	if !limiter.Allow("c", now) {
		t.Fatal("first request should pass")
	}
	if limiter.Allow("c", now.Add(30*time.Second)) {
		t.Fatal("second request within the window should be rejected")
	}
	// Only the admission at t=0 counts; were the rejected attempt at t=30s
	// recorded, this would still be over capacity.
	if !limiter.Allow("c", now.Add(61*time.Second)) {
		t.Fatal("request after the admitted stamp aged out should pass")
	}
}

func TestLimiterClientsAreIndependent(t *testing.T) {
	limiter := New(1, time.Minute)
	now := time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC)

	if !limiter.Allow("a", now) {
		t.Fatal("client a should be admitted")
	}
	if !limiter.Allow("b", now) {
		t.Fatal("client b should be admitted independently")
	}
	if limiter.Allow("a", now.Add(time.Second)) {
		t.Fatal("client a should be rejected")
	}
}

func TestLimiterDisabledWhenCapacityZero(t *testing.T) {
	limiter := New(0, time.Minute)
	now := time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		if !limiter.Allow("c", now) {
			t.Fatalf("disabled limiter rejected request %d", i+1)
		}
	}
}

func TestLimiterEvictsStaleClients(t *testing.T) {
	limiter := New(5, time.Minute)
	now := time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), now)
	}
	if got := limiter.Len(); got != 100 {
		t.Fatalf("expected 100 tracked clients, got %d", got)
	}

	// Two windows later a single request triggers the prune.
	limiter.Allow("fresh", now.Add(2*time.Minute))
	if got := limiter.Len(); got != 1 {
		t.Fatalf("expected stale clients evicted, got %d tracked", got)
	}
}

func TestLimiterConcurrentAccess(t *testing.T) {
	limiter := New(1000, time.Minute)
	now := time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	admitted := make([]int, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if limiter.Allow("shared", now.Add(time.Duration(i)*time.Millisecond)) {
					admitted[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range admitted {
		total += n
	}
	if total != 1000 {
		t.Fatalf("expected exactly 1000 admissions across goroutines, got %d", total)
	}
}
