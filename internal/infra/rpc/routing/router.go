// Package routing handles provider selection, failover and retries.
package routing

import (
	"sync"
	"time"

	"github.com/vietddude/commune/internal/infra/rpc/provider"
)

// Router handles provider selection and health tracking.
type Router interface {
	// AddProvider registers a provider for a chain
	AddProvider(chain string, p provider.Provider)

	// Candidates returns the providers of a chain in the order they should be tried
	Candidates(chain string) []provider.Provider

	// GetAllProviders returns all providers for a chain
	GetAllProviders(chain string) []provider.Provider

	// RecordSuccess tracks successful calls
	RecordSuccess(providerName string, latency time.Duration)

	// RecordFailure tracks failed calls
	RecordFailure(providerName string, err error)
}

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

type providerMetrics struct {
	successCount     int
	failureCount     int
	totalLatency     time.Duration
	lastSuccessAt    time.Time
	lastFailureAt    time.Time
	consecutiveFails int
	circuitOpen      bool
}

// DefaultRouter rotates round-robin over healthy providers and opens a circuit
// after repeated failures.
type DefaultRouter struct {
	mu             sync.RWMutex
	chainProviders map[string][]provider.Provider
	providerHealth map[string]*providerMetrics
	next           map[string]int
	now            func() time.Time
}

// NewRouter creates an empty router.
func NewRouter() *DefaultRouter {
	return &DefaultRouter{
		chainProviders: make(map[string][]provider.Provider),
		providerHealth: make(map[string]*providerMetrics),
		next:           make(map[string]int),
		now:            time.Now,
	}
}

// AddProvider registers a provider for a chain.
func (r *DefaultRouter) AddProvider(chain string, p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chainProviders[chain] = append(r.chainProviders[chain], p)
	r.providerHealth[p.GetName()] = &providerMetrics{lastSuccessAt: r.now()}
}

// Candidates returns healthy providers first, starting from the round-robin
// position, followed by the rest. Unhealthy providers are still tried last so a
// fully degraded chain can recover.
func (r *DefaultRouter) Candidates(chain string) []provider.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := r.chainProviders[chain]
	if len(providers) == 0 {
		return nil
	}

	start := r.next[chain] % len(providers)
	r.next[chain] = start + 1

	var healthy, rest []provider.Provider
	for i := range providers {
		p := providers[(start+i)%len(providers)]
		if r.usableLocked(p) {
			healthy = append(healthy, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(healthy, rest...)
}

func (r *DefaultRouter) usableLocked(p provider.Provider) bool {
	if !p.IsAvailable() {
		return false
	}
	m, ok := r.providerHealth[p.GetName()]
	if !ok || !m.circuitOpen {
		return true
	}
	// Half-open after the cooldown.
	return r.now().Sub(m.lastFailureAt) >= circuitCooldown
}

// GetAllProviders returns all providers for a chain.
func (r *DefaultRouter) GetAllProviders(chain string) []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := r.chainProviders[chain]
	result := make([]provider.Provider, len(providers))
	copy(result, providers)
	return result
}

// RecordSuccess records a successful call.
func (r *DefaultRouter) RecordSuccess(providerName string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.providerHealth[providerName]
	if !ok {
		return
	}
	m.successCount++
	m.totalLatency += latency
	m.lastSuccessAt = r.now()
	m.consecutiveFails = 0
	m.circuitOpen = false
}

// RecordFailure records a failed call.
func (r *DefaultRouter) RecordFailure(providerName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.providerHealth[providerName]
	if !ok {
		return
	}
	m.failureCount++
	m.lastFailureAt = r.now()
	m.consecutiveFails++
	if m.consecutiveFails >= circuitThreshold {
		m.circuitOpen = true
	}
}

// CircuitOpen reports whether providerName is currently skipped.
func (r *DefaultRouter) CircuitOpen(providerName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.providerHealth[providerName]
	return ok && m.circuitOpen
}
