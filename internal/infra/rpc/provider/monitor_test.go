package provider

import (
	"testing"
	"time"
)

func TestMonitor_CountsRequestsInWindow(t *testing.T) {
	m := NewProviderMonitor()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	m.RecordRequest(100 * time.Millisecond)
	now = now.Add(30 * time.Minute)
	m.RecordRequest(100 * time.Millisecond)

	if got := m.GetStats().RequestsLastHour; got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}

	now = now.Add(45 * time.Minute)
	m.RecordRequest(100 * time.Millisecond)
	if got := m.GetStats().RequestsLastHour; got != 2 {
		t.Errorf("expected the first request to leave the window, got %d", got)
	}
}

func TestMonitor_ThrottleHonoursRetryAfter(t *testing.T) {
	m := NewProviderMonitor()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	m.RecordThrottle(429, "5")
	if m.CheckProviderStatus() != StatusThrottled {
		t.Fatal("expected throttled after 429")
	}
	if got := m.GetRetryAfter(); got != 5*time.Second {
		t.Errorf("expected 5s retry-after, got %v", got)
	}

	now = now.Add(6 * time.Second)
	if m.CheckProviderStatus() != StatusHealthy {
		t.Error("expected healthy once retry-after elapsed")
	}
}

func TestMonitor_BlockedOn403(t *testing.T) {
	m := NewProviderMonitor()
	m.RecordThrottle(403, "")
	if m.CheckProviderStatus() != StatusBlocked {
		t.Errorf("expected blocked, got %s", m.CheckProviderStatus())
	}
}

func TestMonitor_DegradedWhenSlow(t *testing.T) {
	m := NewProviderMonitor()
	for i := 0; i < 11; i++ {
		m.RecordRequest(5 * time.Second)
	}
	if m.CheckProviderStatus() != StatusDegraded {
		t.Errorf("expected degraded, got %s", m.CheckProviderStatus())
	}
}

func TestMonitor_DetectThrottlePattern(t *testing.T) {
	m := NewProviderMonitor()
	if !m.DetectThrottlePattern("Project rate limit exceeded for key") {
		t.Error("expected rate limit message to be detected")
	}
	if m.DetectThrottlePattern("execution reverted") {
		t.Error("revert message detected as throttle")
	}
}
