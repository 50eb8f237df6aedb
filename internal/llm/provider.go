// Package llm defines the text-generation provider capability and its
// runtime registry. Providers are opaque remote or local services; the
// pipeline only invokes their fixed contract.
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Request is one generation call.
type Request struct {
	Prompt      string
	Model       string
	Temperature float64
}

// Response is the provider's answer.
type Response struct {
	Text  string
	Model string
}

// Provider is the uniform text-generation capability. Implementations must
// be safe for concurrent use and honor context cancellation.
type Provider interface {
	ID() string
	DisplayName() string
	Health(ctx context.Context) error
	Models(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, req Request) (Response, error)
}

// Registry maps provider identifiers to implementations. Registration is an
// explicit call; there is no discovery.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Registering a duplicate id is an error.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.ID()]; exists {
		return fmt.Errorf("provider %q already registered", p.ID())
	}
	r.providers[p.ID()] = p
	return nil
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", id)
	}
	return p, nil
}

// IDs returns the registered provider identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Providers returns all registered providers in id order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Provider, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.providers[id])
	}
	return out
}
