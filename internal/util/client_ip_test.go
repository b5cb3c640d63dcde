package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPUntrustedPeerIgnoresForwarded(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:1234"
	r.Header.Set("X-Forwarded-For", "10.0.0.1")
	if got := ClientIP(r, nil); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q, want peer address", got)
	}
}

func TestClientIPTrustedProxyChain(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	if got := ClientIP(r, trusted); got != "198.51.100.9" {
		t.Fatalf("ClientIP = %q, want first untrusted hop", got)
	}
}

func TestClientIPTrustedProxyRealIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.2"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	r.Header.Set("X-Real-IP", "198.51.100.9")
	if got := ClientIP(r, trusted); got != "198.51.100.9" {
		t.Fatalf("ClientIP = %q, want X-Real-IP value", got)
	}
}

func TestNewTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
