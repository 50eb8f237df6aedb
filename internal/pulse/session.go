package pulse

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/ringlink/internal/async"
	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/link"
)

// DefaultFrameQueueCapacity bounds the per-session frame queue.
const DefaultFrameQueueCapacity = 128

// Session owns the interpreter state for one connected device and runs the
// single-consumer processing loop that evaluates it.
//
// HandleFrame is the ingestion side: it is safe to call from the radio's
// notification-delivery context and never blocks; frames are handed to the
// loop through a bounded drop-oldest queue. The loop serializes all state
// machine calls, so per-session event ordering is strict.
type Session struct {
	name   string
	interp *Interpreter
	bus    *event.Bus
	clock  Clock
	frames *event.RingChannel[link.RawFrame]
	logger *logrus.Logger

	stop    chan struct{}
	done    chan struct{}
	stopped atomic.Bool
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// Name labels the session in logs and goroutine profiles.
	Name string
	// FrameQueueCapacity bounds the ingestion queue (0 = default).
	FrameQueueCapacity int
}

// NewSession creates and starts a session loop. The caller must Close it.
func NewSession(interp *Interpreter, bus *event.Bus, clock Clock, logger *logrus.Logger, opts SessionOptions) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Name == "" {
		opts.Name = "session"
	}
	if opts.FrameQueueCapacity <= 0 {
		opts.FrameQueueCapacity = DefaultFrameQueueCapacity
	}

	s := &Session{
		name:   opts.Name,
		interp: interp,
		bus:    bus,
		clock:  clock,
		frames: event.NewRingChannel[link.RawFrame](opts.FrameQueueCapacity),
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	async.Go(context.Background(), "pulse-"+opts.Name, logger, func(context.Context) {
		defer close(s.done)
		s.run()
	})

	return s
}

// HandleFrame hands one raw frame to the processing loop. It never blocks;
// if the loop is behind, the oldest queued frame is discarded. Frames
// arriving after Close are ignored.
func (s *Session) HandleFrame(f link.RawFrame) {
	if s.stopped.Load() {
		return
	}
	if f.ReceivedAt.IsZero() {
		f.ReceivedAt = s.clock.Now()
	}
	if s.frames.Send(f) {
		s.logger.WithField("session", s.name).Warn("Frame queue overflow, dropped oldest frame")
	}
}

// FramesDropped returns how many frames were lost to queue overflow.
func (s *Session) FramesDropped() int64 { return s.frames.Dropped() }

// Close stops the processing loop and silently resets the interpreter: a
// gesture in progress at teardown is not reported. Idempotent.
func (s *Session) Close() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stop)
	<-s.done
}

func (s *Session) run() {
	for {
		var (
			timer  Timer
			timerC <-chan time.Time
		)
		if deadline, ok := s.interp.NextDeadline(); ok {
			d := deadline.Sub(s.clock.Now())
			if d < 0 {
				d = 0
			}
			timer = s.clock.NewTimer(d)
			timerC = timer.C()
		}

		select {
		case <-s.stop:
			if timer != nil {
				timer.Stop()
			}
			s.interp.Reset()
			return

		case f := <-s.frames.C():
			s.publish(s.interp.OnFrame(f))

		case now := <-timerC:
			// Frames already queued carry timestamps from before this tick
			// was observed; interpret them first so a delayed release is not
			// trumped by the wall clock.
			s.drainFrames()
			s.publish(s.interp.OnTick(now))
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// drainFrames processes every frame already queued without blocking.
func (s *Session) drainFrames() {
	for {
		select {
		case f := <-s.frames.C():
			s.publish(s.interp.OnFrame(f))
		default:
			return
		}
	}
}

func (s *Session) publish(events []event.Semantic) {
	for _, ev := range events {
		s.logger.WithFields(logrus.Fields{
			"session": s.name,
			"kind":    ev.Kind.String(),
			"char":    link.ShortenUUID(ev.Characteristic),
		}).Debug("Emitting semantic event")
		s.bus.Publish(ev)
	}
}
