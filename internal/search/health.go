package search

import (
	"sync"
	"time"
)

// HealthState tracks whether the search backend is reachable. When a
// connectivity failure is observed the state flips to degraded and calls
// short-circuit until the cooldown elapses, at which point one call is
// allowed through as a probe. The clock is injectable for tests.
//
// This is a coarse advisory flag, not a correctness gate: the mutex only
// keeps the (healthy, retryAt) pair consistent.
type HealthState struct {
	mu       sync.Mutex
	healthy  bool
	retryAt  time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewHealthState starts healthy with the given probe cooldown.
func NewHealthState(cooldown time.Duration, now func() time.Time) *HealthState {
	if now == nil {
		now = time.Now
	}
	return &HealthState{healthy: true, cooldown: cooldown, now: now}
}

// MarkDown records a connectivity failure and schedules the next probe.
func (h *HealthState) MarkDown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = false
	h.retryAt = h.now().Add(h.cooldown)
}

// MarkUp records a successful call against the backend.
func (h *HealthState) MarkUp() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = true
	h.retryAt = time.Time{}
}

// Healthy reports the current advisory state.
func (h *HealthState) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthy
}

// Available reports whether a call should be attempted: either the backend
// is healthy, or the cooldown has elapsed and this call may act as a probe.
func (h *HealthState) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthy || !h.now().Before(h.retryAt)
}
