package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/ringlink/internal/async"
	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/executor"
)

// Saturation selects what happens to an invocation when its action
// already has the maximum number of in-flight executions.
type Saturation string

const (
	// SaturationQueue holds the invocation until a slot frees up.
	SaturationQueue Saturation = "queue"
	// SaturationReject fails the invocation immediately.
	SaturationReject Saturation = "reject"
)

// ParseSaturation validates a saturation policy name from configuration.
func ParseSaturation(s string) (Saturation, error) {
	switch Saturation(s) {
	case SaturationQueue, SaturationReject:
		return Saturation(s), nil
	case "":
		return SaturationQueue, nil
	default:
		return "", fmt.Errorf("unknown saturation policy %q (want %q or %q)", s, SaturationQueue, SaturationReject)
	}
}

// ErrRejected is recorded when a saturated action rejects an invocation.
var ErrRejected = errors.New("action saturated, invocation rejected")

// RouterConfig bounds what a single action may do at once and how long
// an invocation may run.
type RouterConfig struct {
	// MaxInFlight is the per-action concurrency ceiling. Must be >= 1.
	MaxInFlight int
	// OnSaturation decides the fate of invocations beyond the ceiling.
	OnSaturation Saturation
	// InvokeTimeout caps a single execution. Zero disables the cap.
	InvokeTimeout time.Duration
}

// binding ties an action id to its executor and its in-flight slots.
type binding struct {
	actionID string
	exec     executor.Executor
	slots    chan struct{}
}

// Router dispatches semantic events to action executors. Route never
// blocks the caller: resolution happens synchronously against the
// active mapping snapshot, execution happens on a dedicated goroutine
// bounded by the per-action concurrency ceiling. Every invocation ends
// up in the outcome journal regardless of how it went.
type Router struct {
	cfg      RouterConfig
	mapping  *Snapshot
	bindings map[string]*binding
	journal  *Journal
	logger   *logrus.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewRouter wires a router from the initial mapping and the configured
// action executors. Every action id the mapping references must have an
// executor; the noop action is supplied automatically when absent so a
// default mapping always routes.
func NewRouter(cfg RouterConfig, mapping *Mapping, executors map[string]executor.Executor, journal *Journal, logger *logrus.Logger) (*Router, error) {
	if cfg.MaxInFlight < 1 {
		return nil, fmt.Errorf("max in-flight must be >= 1, got %d", cfg.MaxInFlight)
	}
	if _, err := ParseSaturation(string(cfg.OnSaturation)); err != nil {
		return nil, err
	}
	if cfg.OnSaturation == "" {
		cfg.OnSaturation = SaturationQueue
	}
	if mapping == nil {
		return nil, fmt.Errorf("mapping cannot be nil")
	}
	if journal == nil {
		return nil, fmt.Errorf("journal cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	bindings := make(map[string]*binding, len(executors)+1)
	for actionID, exec := range executors {
		if exec == nil {
			return nil, fmt.Errorf("action %q: nil executor", actionID)
		}
		bindings[actionID] = &binding{
			actionID: actionID,
			exec:     exec,
			slots:    make(chan struct{}, cfg.MaxInFlight),
		}
	}
	if _, ok := bindings[NoopAction]; !ok {
		bindings[NoopAction] = &binding{
			actionID: NoopAction,
			exec:     executor.Noop{},
			slots:    make(chan struct{}, cfg.MaxInFlight),
		}
	}
	for _, entry := range mapping.Entries() {
		if _, ok := bindings[entry.Action]; !ok {
			return nil, fmt.Errorf("mapping binds %s to unknown action %q", entry.Kind, entry.Action)
		}
	}

	return &Router{
		cfg:      cfg,
		mapping:  NewSnapshot(mapping),
		bindings: bindings,
		journal:  journal,
		logger:   logger,
	}, nil
}

// Mapping returns the active mapping snapshot.
func (r *Router) Mapping() *Mapping {
	return r.mapping.Load()
}

// SwapMapping atomically replaces the active mapping. Every action the
// new mapping references must already have an executor.
func (r *Router) SwapMapping(next *Mapping) error {
	if next == nil {
		return fmt.Errorf("mapping cannot be nil")
	}
	for _, entry := range next.Entries() {
		if _, ok := r.bindings[entry.Action]; !ok {
			return fmt.Errorf("mapping binds %s to unknown action %q", entry.Kind, entry.Action)
		}
	}
	r.mapping.Swap(next)
	return nil
}

// Actions returns the bound action ids, sorted.
func (r *Router) Actions() []string {
	out := make([]string, 0, len(r.bindings))
	for id := range r.bindings {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Route resolves ev against the active mapping and hands it to the
// bound executor. It returns as soon as the invocation is scheduled.
// After Close, events are dropped silently.
func (r *Router) Route(ev event.Semantic) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	actionID := r.mapping.Load().Resolve(ev.Kind)
	b := r.bindings[actionID]
	r.wg.Add(1)
	r.mu.Unlock()

	async.Go(nil, "invoke-"+actionID, r.logger, func(ctx context.Context) {
		defer r.wg.Done()
		r.invoke(ctx, b, ev)
	})
}

func (r *Router) invoke(ctx context.Context, b *binding, ev event.Semantic) {
	outcome := Outcome{
		ID:         uuid.NewString(),
		Kind:       ev.Kind,
		ActionID:   b.actionID,
		ExecutorID: b.exec.ID(),
	}

	if r.cfg.OnSaturation == SaturationReject {
		select {
		case b.slots <- struct{}{}:
		default:
			outcome.StartedAt = time.Now()
			outcome.Status = StatusFailure
			outcome.Error = ErrRejected.Error()
			r.record(outcome)
			return
		}
	} else {
		b.slots <- struct{}{}
	}
	defer func() { <-b.slots }()

	if r.cfg.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.InvokeTimeout)
		defer cancel()
	}

	outcome.StartedAt = time.Now()
	detail, err := b.exec.Execute(ctx, ev)
	outcome.Duration = time.Since(outcome.StartedAt)
	outcome.Detail = detail

	switch {
	case err == nil:
		outcome.Status = StatusSuccess
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome.Status = StatusTimeout
		outcome.Error = err.Error()
	default:
		outcome.Status = StatusFailure
		outcome.Error = err.Error()
	}
	r.record(outcome)
}

func (r *Router) record(o Outcome) {
	r.journal.Record(o)

	fields := logrus.Fields{
		"outcome":  o.ID,
		"kind":     o.Kind.String(),
		"action":   o.ActionID,
		"executor": o.ExecutorID,
		"duration": o.Duration,
	}
	switch o.Status {
	case StatusSuccess:
		r.logger.WithFields(fields).Debug("Action completed")
	case StatusTimeout:
		r.logger.WithFields(fields).WithField("error", o.Error).Warn("Action timed out")
	default:
		r.logger.WithFields(fields).WithField("error", o.Error).Warn("Action failed")
	}
}

// Close stops accepting events and waits for in-flight invocations to
// finish. It is idempotent.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
