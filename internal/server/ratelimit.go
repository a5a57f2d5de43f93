// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Search requests each cost a provider call, so clients are throttled per IP.

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps the number of IPs tracked at once; the least recently
	// seen are evicted during cleanup. Default: 10000.
	MaxVisitors int
}

const defaultMaxVisitors = 10000

// ApplyDefaults fills zero fields.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
}

// Validate checks that the RateLimitConfig is valid.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return udberr.Errorf(udberr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return udberr.Errorf(udberr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return udberr.Errorf(udberr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors tracks one token bucket per client IP.
type visitors struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	entries map[string]*visitor
	now     func() time.Time
}

func newVisitors(cfg RateLimitConfig) *visitors {
	return &visitors{cfg: cfg, entries: make(map[string]*visitor), now: time.Now}
}

func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[ip]
	if !ok {
		e = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.entries[ip] = e
	}
	e.lastSeen = v.now()
	return e.limiter.AllowN(e.lastSeen, 1)
}

// cleanup drops idle visitors and enforces MaxVisitors.
func (v *visitors) cleanup(staleAfter time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	type entry struct {
		ip       string
		lastSeen time.Time
	}
	live := make([]entry, 0, len(v.entries))
	for ip, e := range v.entries {
		if now.Sub(e.lastSeen) > staleAfter {
			delete(v.entries, ip)
			continue
		}
		live = append(live, entry{ip: ip, lastSeen: e.lastSeen})
	}

	if v.cfg.MaxVisitors > 0 && len(live) > v.cfg.MaxVisitors {
		slices.SortFunc(live, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
		evict := len(live) - v.cfg.MaxVisitors
		for _, e := range live[:evict] {
			delete(v.entries, e.ip)
		}
		slog.Warn("rate limiter visitor map cap enforced",
			"evicted", evict, "max_visitors", v.cfg.MaxVisitors, "remaining", len(v.entries))
	}
}

func (v *visitors) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// rateLimitMiddleware returns middleware that enforces per-IP rate limits.
// Returns a pass-through middleware when cfg.RequestsPerSecond is zero.
// The done channel stops the cleanup goroutine.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	vs := newVisitors(cfg)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				vs.cleanup(10 * time.Minute)
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by IP, not by connection.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !vs.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
