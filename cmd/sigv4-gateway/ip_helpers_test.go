package main

import (
	"net"
	"net/http/httptest"
	"testing"
)

func mustCIDRs(t *testing.T, values ...string) []*net.IPNet {
	t.Helper()
	out := make([]*net.IPNet, 0, len(values))
	for _, value := range values {
		_, network, err := net.ParseCIDR(value)
		if err != nil {
			t.Fatalf("parse cidr %q: %v", value, err)
		}
		out = append(out, network)
	}
	return out
}

func TestClientIPIgnoresForwardingFromUntrustedPeer(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.RemoteAddr = "203.0.113.7:4411"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")

	if got := clientIP(r, nil); got != "203.0.113.7" {
		t.Fatalf("expected direct peer ip, got %q", got)
	}
}

func TestClientIPHonorsForwardingFromTrustedProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.RemoteAddr = "10.0.0.5:4411"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.5")

	if got := clientIP(r, mustCIDRs(t, "10.0.0.0/8")); got != "198.51.100.9" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
}

func TestClientIPFallsBackToRealIPHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.RemoteAddr = "10.0.0.5:4411"
	r.Header.Set("X-Real-IP", "198.51.100.10")

	if got := clientIP(r, mustCIDRs(t, "10.0.0.0/8")); got != "198.51.100.10" {
		t.Fatalf("expected real-ip header value, got %q", got)
	}
}

func TestIsLoopbackClient(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"10.0.0.1":  false,
		"":          false,
	}
	for input, expected := range cases {
		if got := isLoopbackClient(input); got != expected {
			t.Fatalf("isLoopbackClient(%q) = %v, expected %v", input, got, expected)
		}
	}
}

func TestRemoteAddrIPStringHandlesIPv6(t *testing.T) {
	if got := remoteAddrIPString("[2001:db8::1]:8080"); got != "2001:db8::1" {
		t.Fatalf("expected bare ipv6 address, got %q", got)
	}
}
