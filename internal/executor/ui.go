package executor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/link"
)

// UISink renders events as colorized lines on a writer. It stands in for
// the UI surface: the pipeline treats it like any other executor.
type UISink struct {
	mu  sync.Mutex
	out io.Writer

	kindColor *color.Color
	charColor *color.Color
}

// NewUISink builds a UI sink writing to deps.Out (io.Discard if unset).
func NewUISink(deps Deps, _ map[string]string) (Executor, error) {
	out := deps.Out
	if out == nil {
		out = io.Discard
	}
	return &UISink{
		out:       out,
		kindColor: color.New(color.FgGreen, color.Bold),
		charColor: color.New(color.FgCyan),
	}, nil
}

func (*UISink) ID() string { return "ui" }

// Execute writes one event line. Concurrent invocations are serialized so
// lines never interleave.
func (s *UISink) Execute(_ context.Context, ev event.Semantic) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := fmt.Sprintf("%s  %s  %s",
		ev.Timestamp.Format("15:04:05.000"),
		s.kindColor.Sprint(ev.Kind.String()),
		s.charColor.Sprint(link.ShortenUUID(ev.Characteristic)),
	)
	if ev.Kind == event.RawNotify {
		line += fmt.Sprintf("  % x", ev.Payload)
	}

	if _, err := fmt.Fprintln(s.out, line); err != nil {
		return "", fmt.Errorf("ui sink write: %w", err)
	}
	return line, nil
}

func (*UISink) Health(context.Context) error { return nil }
