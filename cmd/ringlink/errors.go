package main

import (
	"context"
	"errors"

	"github.com/srg/ringlink/internal/link"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the ring disconnected while the pipeline
	// was running. This is distinct from link.ErrNotConnected, which
	// indicates an attempt to use a device that was never connected.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError translates well-known failure modes into messages that
// make sense without reading the source. Anything unrecognized is printed
// as-is.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, ErrConnectionLost):
		return "the ring disconnected; move it closer and run again"
	case errors.Is(err, link.ErrNotConnected):
		return err.Error() + " (is the ring powered on and in range?)"
	case errors.Is(err, context.DeadlineExceeded):
		return err.Error() + " (operation timed out)"
	default:
		return err.Error()
	}
}
