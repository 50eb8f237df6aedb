package action

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"

	"github.com/srg/ringlink/internal/event"
)

// Status classifies how an action invocation ended.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// Outcome is the durable record of one action invocation. Outcomes are
// written by the router after every invocation, successful or not.
type Outcome struct {
	ID         string        `json:"id"`
	Kind       event.Kind    `json:"kind"`
	ActionID   string        `json:"action"`
	ExecutorID string        `json:"executor"`
	Status     Status        `json:"status"`
	Detail     string        `json:"detail,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// JournalMetrics exposes lock-free counters for a Journal.
type JournalMetrics struct {
	recorded    atomic.Int64
	overwritten atomic.Int64
	failures    atomic.Int64
	timeouts    atomic.Int64
}

// Recorded returns the total number of outcomes written.
func (m *JournalMetrics) Recorded() int64 { return m.recorded.Load() }

// Overwritten returns the number of outcomes lost to ring overflow.
func (m *JournalMetrics) Overwritten() int64 { return m.overwritten.Load() }

// Failures returns the number of failed invocations recorded.
func (m *JournalMetrics) Failures() int64 { return m.failures.Load() }

// Timeouts returns the number of timed-out invocations recorded.
func (m *JournalMetrics) Timeouts() int64 { return m.timeouts.Load() }

// maxJournalSize guards against accidental misconfiguration.
const maxJournalSize uint32 = 1024 * 1024

// Journal retains the most recent action outcomes in a bounded ring.
// When the ring is full the oldest outcomes are overwritten, so a
// long-running pipeline never grows the journal without bound.
//
// All methods are safe for concurrent use.
type Journal struct {
	buffer  mpmc.RichOverlappedRingBuffer[Outcome]
	metrics JournalMetrics
}

// NewJournal creates a journal retaining up to size outcomes.
func NewJournal(size uint32) (*Journal, error) {
	if size == 0 {
		return nil, fmt.Errorf("journal size must be > 0")
	}
	if size > maxJournalSize {
		return nil, fmt.Errorf("journal size %d exceeds maximum %d", size, maxJournalSize)
	}
	return &Journal{
		buffer: mpmc.NewOverlappedRingBuffer[Outcome](size),
	}, nil
}

// Record appends an outcome, overwriting the oldest entry when full.
func (j *Journal) Record(o Outcome) {
	overwrites, err := j.buffer.EnqueueM(o)
	if err != nil {
		// EnqueueM on an overlapped ring only fails on internal corruption.
		panic(fmt.Sprintf("outcome journal: %v", err))
	}
	j.metrics.overwritten.Add(int64(overwrites))
	j.metrics.recorded.Add(1)
	switch o.Status {
	case StatusFailure:
		j.metrics.failures.Add(1)
	case StatusTimeout:
		j.metrics.timeouts.Add(1)
	}
}

// Drain removes and returns all buffered outcomes, oldest first.
func (j *Journal) Drain() ([]Outcome, error) {
	var out []Outcome
	for !j.buffer.IsEmpty() {
		o, err := j.buffer.Dequeue()
		if err != nil {
			return out, fmt.Errorf("journal dequeue: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Metrics returns the journal's counters.
func (j *Journal) Metrics() *JournalMetrics {
	return &j.metrics
}
