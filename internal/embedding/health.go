// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package embedding

import (
	"sync"
	"time"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
	"github.com/udbhav-health/udbhav/pkg/health"
)

// DefaultHealthCooldown is the duration after which an unhealthy provider
// becomes eligible again.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker tracks provider health. A provider is healthy until
// RecordFailure is called, then unhealthy for the cooldown period.
type HealthTracker struct {
	mu           sync.RWMutex
	provider     string
	healthy      bool
	failedAt     time.Time
	lastErr      string
	cooldown     time.Duration
	failureCount int64
	nowFunc      func() time.Time
}

// NewHealthTracker creates a tracker that starts healthy. Returns an error if
// cooldown is zero or negative.
func NewHealthTracker(provider string, cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, udberr.Errorf(udberr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		provider: provider,
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// The caller must hold at least h.mu.RLock.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// IsHealthy returns true if the provider is healthy or the cooldown has elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

// RecordSuccess marks the provider as healthy.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

// RecordFailure marks the provider unhealthy and remembers err.
func (h *HealthTracker) RecordFailure(err error) {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	if err != nil {
		h.lastErr = err.Error()
	}
	h.mu.Unlock()
}

// SetNowFunc overrides the time source.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// HealthMetrics returns a point-in-time snapshot.
func (h *HealthTracker) HealthMetrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		Provider:     h.provider,
		FailureCount: h.failureCount,
		LastError:    h.lastErr,
		Available:    h.isHealthyLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}
