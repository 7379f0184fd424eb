// Package ratelimit is a small per-process sliding-window limiter, used to
// throttle login attempts per client IP. Multi-instance deployments need an
// external limiter instead.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

type Limiter struct {
	mu          sync.Mutex
	entries     map[string][]time.Time
	max         int
	window      time.Duration
	lastCleanup time.Time
}

func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		entries:     make(map[string][]time.Time),
		max:         max,
		window:      window,
		lastCleanup: time.Now(),
	}
}

// Allow records an attempt for key and reports whether it is still within
// the window limit.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(now)
	cutoff := now.Add(-l.window)

	kept := l.entries[key][:0]
	for _, t := range l.entries[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func (l *Limiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = now
	cutoff := now.Add(-l.window)
	for key, times := range l.entries {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(l.entries, key)
		} else {
			l.entries[key] = kept
		}
	}
}

// ClientIP extracts the caller's address, honoring common proxy headers.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
