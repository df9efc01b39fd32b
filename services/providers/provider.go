package providers

import (
	"fmt"
	"hotel-search-go/circuitbreaker"
	"sort"
	"sync"
)

// Provider is an upstream collaborator the service reports on.
type Provider interface {
	// Name returns the provider's identifier (e.g. "rates", "details")
	Name() string

	// Breaker returns the circuit breaker guarding the provider
	Breaker() *circuitbreaker.CircuitBreaker
}

// Registry holds the upstream providers wired into the server.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// List returns all registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Breakers returns a snapshot of every provider's circuit breaker keyed by provider name.
func (r *Registry) Breakers() map[string]circuitbreaker.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]circuitbreaker.Snapshot, len(r.providers))
	for name, p := range r.providers {
		if cb := p.Breaker(); cb != nil {
			out[name] = cb.Snapshot()
		}
	}
	return out
}

// AnyOpen reports whether at least one provider's breaker is OPEN.
func (r *Registry) AnyOpen() bool {
	for _, snap := range r.Breakers() {
		if snap.State == circuitbreaker.StateOpen.String() {
			return true
		}
	}
	return false
}
