package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/rpc/provider"
)

// Check evaluates one component.
type Check func(ctx context.Context) ComponentHealth

// Monitor aggregates health status from the registered checks.
type Monitor struct {
	checks     map[string]Check
	cacheFor   time.Duration
	now        func() time.Time
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a monitor. Reports are cached for cacheFor to avoid
// spamming the RPC providers.
func NewMonitor(cacheFor time.Duration) *Monitor {
	return &Monitor{checks: make(map[string]Check), cacheFor: cacheFor, now: time.Now}
}

// Register adds a named check.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// CheckHealth runs every check, or returns the cached report.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport.Components != nil && m.now().Sub(m.lastCheck) < m.cacheFor {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
		CheckedAt:    m.now(),
	}
	for name, check := range m.checks {
		h := check(ctx)
		h.Name = name
		report.Components[name] = h
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}

	m.lastCheck = report.CheckedAt
	m.lastReport = report
	return report
}

// ChainIDSource reports which chain a node serves.
type ChainIDSource interface {
	RemoteChainID(ctx context.Context) (uint64, error)
	GetLatestBlock(ctx context.Context) (uint64, error)
}

// ChainCheck verifies the node is reachable and serves the expected chain.
func ChainCheck(src ChainIDSource, want domain.ChainID) Check {
	return func(ctx context.Context) ComponentHealth {
		id, err := src.RemoteChainID(ctx)
		if err != nil {
			return ComponentHealth{Status: StatusCritical, Detail: err.Error()}
		}
		if id != uint64(want) {
			return ComponentHealth{Status: StatusCritical, Detail: fmt.Sprintf("node serves chain %d, want %d", id, want)}
		}
		h := ComponentHealth{Status: StatusHealthy, Data: map[string]any{"chain_id": id}}
		if head, err := src.GetLatestBlock(ctx); err == nil {
			h.Data["latest_block"] = head
		}
		return h
	}
}

// ProviderCheck degrades when some RPC providers are unavailable and is
// critical when none are.
func ProviderCheck(health func() map[string]provider.HealthStatus) Check {
	return func(ctx context.Context) ComponentHealth {
		all := health()
		up := 0
		data := make(map[string]any, len(all))
		for name, h := range all {
			if h.Available {
				up++
			}
			data[name] = h
		}
		h := ComponentHealth{Status: StatusHealthy, Data: data}
		switch {
		case up == 0:
			h.Status = StatusCritical
			h.Detail = "no RPC provider available"
		case up < len(all):
			h.Status = StatusDegraded
			h.Detail = fmt.Sprintf("%d of %d providers available", up, len(all))
		}
		return h
	}
}

// PingCheck wraps a dependency ping such as a database or redis.
func PingCheck(ping func(ctx context.Context) error, failure SystemStatus) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failure, Detail: err.Error()}
		}
		return ComponentHealth{Status: StatusHealthy}
	}
}

// StuckActionsCheck degrades when an active action has been pending longer
// than limit.
func StuckActionsCheck(active func() []domain.PendingAction, limit time.Duration, now func() time.Time) Check {
	return func(ctx context.Context) ComponentHealth {
		actions := active()
		stuck := 0
		for _, a := range actions {
			if !a.Terminal() && now().Sub(a.CreatedAt) > limit {
				stuck++
			}
		}
		h := ComponentHealth{Status: StatusHealthy, Data: map[string]any{"active": len(actions), "stuck": stuck}}
		if stuck > 0 {
			h.Status = StatusDegraded
			h.Detail = fmt.Sprintf("%d actions pending longer than %s", stuck, limit)
		}
		return h
	}
}
