package server

import (
	"testing"
	"time"
)

func TestRateLimiterEnforcesLimit(t *testing.T) {
	limiter := newRateLimiter(2, time.Minute)

	if !limiter.Allow("org_1") || !limiter.Allow("org_1") {
		t.Fatal("first two calls must pass")
	}
	if limiter.Allow("org_1") {
		t.Fatal("third call must be rejected")
	}
	// Separate keys get separate windows.
	if !limiter.Allow("org_2") {
		t.Fatal("other key must pass")
	}
}

func TestRateLimiterRejectsEmptyKey(t *testing.T) {
	limiter := newRateLimiter(10, time.Minute)
	if limiter.Allow("") {
		t.Fatal("empty key must be rejected")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	limiter := newRateLimiter(1, time.Millisecond)

	if !limiter.Allow("org_1") {
		t.Fatal("first call must pass")
	}
	if limiter.Allow("org_1") {
		t.Fatal("second call within window must be rejected")
	}
	time.Sleep(5 * time.Millisecond)
	if !limiter.Allow("org_1") {
		t.Fatal("call after window must pass")
	}
}
