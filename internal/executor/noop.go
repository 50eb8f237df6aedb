package executor

import (
	"context"

	"github.com/srg/ringlink/internal/event"
)

// Noop is the executor for unmapped event kinds. It succeeds with no side
// effect; resolving to it is normal operation, not an error.
type Noop struct{}

// NewNoop builds the noop executor.
func NewNoop(Deps, map[string]string) (Executor, error) {
	return Noop{}, nil
}

func (Noop) ID() string { return "noop" }

func (Noop) Execute(context.Context, event.Semantic) (string, error) {
	return "", nil
}

func (Noop) Health(context.Context) error { return nil }
