// Package executor defines the action-execution capability and the runtime
// registry of executor variants (noop, UI sink, LLM gateway, remote mirror,
// telemetry). Variants are wired by explicit builder registration; there is
// no reflection or dynamic discovery.
package executor

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/llm"
)

// Executor carries out one configured action in response to a semantic
// event. Implementations must be safe for concurrent Execute calls and must
// honor context cancellation; a cancelled call may leave already-committed
// side effects in place (at-most-once-attempted semantics).
type Executor interface {
	// ID identifies the executor variant (e.g. "llm", "mirror").
	ID() string

	// Execute performs the action and returns a human-readable detail for
	// the outcome record.
	Execute(ctx context.Context, ev event.Semantic) (detail string, err error)

	// Health reports whether the executor's backing service is reachable.
	Health(ctx context.Context) error
}

// Deps are the shared collaborators handed to every builder.
type Deps struct {
	Logger    *logrus.Logger
	Providers *llm.Registry
	// Out is the UI sink destination (stdout in the CLI).
	Out io.Writer
}

// Builder constructs an executor variant from its configuration options.
type Builder func(deps Deps, opts map[string]string) (Executor, error)

// Registry maps executor variant identifiers to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under the given variant id. Duplicate
// registration is an error.
func (r *Registry) Register(id string, b Builder) error {
	if b == nil {
		return fmt.Errorf("executor %q: nil builder", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[id]; exists {
		return fmt.Errorf("executor %q already registered", id)
	}
	r.builders[id] = b
	return nil
}

// Build constructs the variant registered under id.
func (r *Registry) Build(id string, deps Deps, opts map[string]string) (Executor, error) {
	r.mu.RLock()
	b, ok := r.builders[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown executor %q", id)
	}
	return b(deps, opts)
}

// IDs returns the registered variant identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.builders))
	for id := range r.builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry returns a registry with every built-in variant.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Built-ins cannot collide on a fresh registry.
	_ = r.Register("noop", NewNoop)
	_ = r.Register("ui", NewUISink)
	_ = r.Register("llm", NewLLM)
	_ = r.Register("mirror", NewMirror)
	_ = r.Register("telemetry", NewTelemetry)
	return r
}
