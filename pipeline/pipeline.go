// Package pipeline wires the ring event pipeline together: a connected BLE
// session feeds the pulse interpreter, finalized semantic events fan out
// through the bus, and the action router drives the configured executors.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/ringlink/internal/action"
	"github.com/srg/ringlink/internal/async"
	"github.com/srg/ringlink/internal/diag"
	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/executor"
	"github.com/srg/ringlink/internal/link"
	"github.com/srg/ringlink/internal/profile"
	"github.com/srg/ringlink/internal/pulse"
)

const (
	// DefaultBusCapacity is the per-subscriber queue size when unset.
	DefaultBusCapacity = 64

	// DefaultJournalSize is the outcome journal size when unset.
	DefaultJournalSize = 256
)

// Options contains all the configuration for running a pipeline.
type Options struct {
	Address        string           // BLE device address
	ConnectTimeout time.Duration    // BLE connection timeout
	Profile        *profile.Profile // characteristic layout, normalized
	Pulse          pulse.Config     // gesture timing and overflow policy
	FrameBuffer    int              // per-session frame queue size (0 = default)
	BusCapacity    int              // per-subscriber queue size (0 = default)
	Router         action.RouterConfig
	JournalSize    uint32                       // outcome journal size (0 = default)
	Mapping        *action.Mapping              // initial kind mappings (nil = all noop)
	Executors      map[string]executor.Executor // action id -> executor
	DiagCapture    int                          // raw capture ring bytes (0 = disabled)
	Clock          pulse.Clock                  // nil = wall clock
	Logger         *logrus.Logger
}

// ProgressCallback is called when the pipeline phase changes
type ProgressCallback func(phase string)

// Callback is executed with the running pipeline and blocks until the
// pipeline should shut down.
type Callback[R any] func(Pipeline) (R, error)

// Pipeline is the handle the callback operates on.
type Pipeline interface {
	// Bus gives access to the semantic event stream.
	Bus() *event.Bus
	// Journal exposes recorded action outcomes.
	Journal() *action.Journal
	// Capture returns the raw notification capture, or nil when disabled.
	Capture() *diag.Capture
	// Mapping returns the active gesture mapping.
	Mapping() *action.Mapping
	// SwapMapping atomically replaces the gesture mapping.
	SwapMapping(*action.Mapping) error
	// FramesDropped counts raw frames lost to ingestion overflow.
	FramesDropped() int64
	// Done is closed when the device session ends, by Close or by the
	// device disconnecting.
	Done() <-chan struct{}
}

type pipelineImpl struct {
	bus     *event.Bus
	journal *action.Journal
	capture *diag.Capture
	router  *action.Router
	session *pulse.Session
	link    link.Session
}

func (p *pipelineImpl) Bus() *event.Bus                     { return p.bus }
func (p *pipelineImpl) Journal() *action.Journal            { return p.journal }
func (p *pipelineImpl) Capture() *diag.Capture              { return p.capture }
func (p *pipelineImpl) Mapping() *action.Mapping            { return p.router.Mapping() }
func (p *pipelineImpl) SwapMapping(m *action.Mapping) error { return p.router.SwapMapping(m) }
func (p *pipelineImpl) FramesDropped() int64                { return p.session.FramesDropped() }
func (p *pipelineImpl) Done() <-chan struct{}               { return p.link.Done() }

// Run connects to the device, assembles the pipeline, and executes the
// callback with it. It blocks until the callback returns, then tears the
// pipeline down in reverse order. A gesture in progress at teardown is
// discarded silently.
func Run[R any](
	ctx context.Context,
	lnk link.Link,
	opts *Options,
	progressCallback ProgressCallback,
	callback Callback[R],
) (R, error) {
	var zero R

	if opts == nil {
		return zero, fmt.Errorf("failed to run pipeline: options are required")
	}
	if opts.Address == "" {
		return zero, fmt.Errorf("failed to run pipeline: device address is required")
	}
	if opts.Profile == nil {
		return zero, fmt.Errorf("failed to run pipeline: device profile is required")
	}
	if lnk == nil {
		return zero, fmt.Errorf("failed to run pipeline: link is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}
	clock := opts.Clock
	if clock == nil {
		clock = pulse.WallClock{}
	}
	mapping := opts.Mapping
	if mapping == nil {
		mapping = action.MustMapping(nil)
	}
	busCapacity := opts.BusCapacity
	if busCapacity <= 0 {
		busCapacity = DefaultBusCapacity
	}
	journalSize := opts.JournalSize
	if journalSize == 0 {
		journalSize = DefaultJournalSize
	}

	// Report phase: Connecting
	progressCallback("Connecting")

	sess, err := lnk.Connect(ctx, opts.Address, &link.ConnectOptions{ConnectTimeout: opts.ConnectTimeout})
	if err != nil {
		progressCallback("Failed")
		return zero, fmt.Errorf("failed to connect to device %s: %w", opts.Address, err)
	}
	defer func() { _ = sess.Close() }()

	progressCallback("Connected")

	journal, err := action.NewJournal(journalSize)
	if err != nil {
		return zero, err
	}

	router, err := action.NewRouter(opts.Router, mapping, opts.Executors, journal, logger)
	if err != nil {
		return zero, err
	}
	defer router.Close()

	bus := event.NewBus(logger)
	defer bus.Close()

	// Route every semantic event. The subscription keeps its own queue so a
	// saturated router never stalls the session loop.
	routeSub := bus.Subscribe("router", nil, busCapacity)
	async.Go(ctx, "router-feed", logger, func(context.Context) {
		for ev := range routeSub.C() {
			router.Route(ev)
		}
	})

	var capture *diag.Capture
	if opts.DiagCapture > 0 {
		capture, err = diag.NewCapture(opts.DiagCapture)
		if err != nil {
			return zero, err
		}
		diagSub := bus.Subscribe("diag", event.MatchKinds(event.RawNotify), busCapacity)
		async.Go(ctx, "diag-capture", logger, func(context.Context) {
			for ev := range diagSub.C() {
				capture.Record(ev.Characteristic, ev.Payload)
			}
		})
	}

	interp := pulse.NewInterpreter(opts.Profile, opts.Pulse)
	session := pulse.NewSession(interp, bus, clock, logger, pulse.SessionOptions{
		Name:               opts.Address,
		FrameQueueCapacity: opts.FrameBuffer,
	})
	defer session.Close()

	// Subscribe every mapped characteristic; all of them feed the same
	// session loop, the interpreter sorts out what each frame means.
	progressCallback("Subscribing")
	for _, charUUID := range opts.Profile.Characteristics() {
		if err := sess.Subscribe(charUUID, session.HandleFrame); err != nil {
			progressCallback("Failed")
			return zero, fmt.Errorf("failed to subscribe to characteristic %s: %w", charUUID, err)
		}
	}

	progressCallback("Running")

	p := &pipelineImpl{
		bus:     bus,
		journal: journal,
		capture: capture,
		router:  router,
		session: session,
		link:    sess,
	}
	return callback(p)
}
