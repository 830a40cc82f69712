package search

import (
	"testing"
	"time"
)

func TestHealthStateProbeCooldown(t *testing.T) {
	clock := testNow
	h := NewHealthState(30*time.Second, func() time.Time { return clock })

	if !h.Healthy() || !h.Available() {
		t.Fatal("fresh state should be healthy and available")
	}

	h.MarkDown()
	if h.Healthy() {
		t.Error("state should be degraded after MarkDown")
	}
	if h.Available() {
		t.Error("no probe inside the cooldown window")
	}

	clock = clock.Add(29 * time.Second)
	if h.Available() {
		t.Error("cooldown not elapsed yet")
	}

	clock = clock.Add(time.Second)
	if !h.Available() {
		t.Error("cooldown elapsed, one probe should be allowed")
	}
	if h.Healthy() {
		t.Error("an allowed probe does not make the state healthy by itself")
	}

	// Failed probe pushes the window out again.
	h.MarkDown()
	if h.Available() {
		t.Error("failed probe should restart the cooldown")
	}

	clock = clock.Add(30 * time.Second)
	h.MarkUp()
	if !h.Healthy() || !h.Available() {
		t.Error("successful probe should restore full availability")
	}
}
