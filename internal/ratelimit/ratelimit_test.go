package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("attempt %d should pass", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("fourth attempt should be limited")
	}
	// Other keys are independent.
	if !l.Allow("5.6.7.8") {
		t.Error("different key should pass")
	}
}

func TestLimiterWindowExpiry(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("first attempt should pass")
	}
	if l.Allow("k") {
		t.Fatal("second attempt should be limited")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("attempt after window should pass")
	}
}

func TestClientIP(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Errorf("remote addr: got %q", got)
	}
	r.Header.Set("X-Real-Ip", "10.0.0.2")
	if got := ClientIP(r); got != "10.0.0.2" {
		t.Errorf("x-real-ip: got %q", got)
	}
	r.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	if got := ClientIP(r); got != "10.0.0.3" {
		t.Errorf("x-forwarded-for: got %q", got)
	}
}
