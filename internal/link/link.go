// Package link defines the BLE link capability the pipeline consumes: device
// discovery, connection, and per-characteristic notification delivery. The
// production adapter is backed by go-ble; tests use the scripted fake.
package link

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RawFrame is one notification as delivered by the radio. Frames are
// immutable once created and consumed exactly once by the pulse interpreter.
type RawFrame struct {
	Characteristic string    // normalized characteristic UUID
	Payload        []byte
	ReceivedAt     time.Time // stamped at delivery from the session clock
}

// FrameHandler receives notification frames. Implementations must not block:
// they are invoked from the radio's delivery context.
type FrameHandler func(RawFrame)

// DeviceHandler receives discovery results during a scan.
type DeviceHandler func(Descriptor)

// Descriptor describes a discoverable device.
type Descriptor struct {
	Address     string
	Name        string
	RSSI        int
	Connectable bool
	Services    []string
}

// ScanOptions configures discovery.
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	AllowList       []string
	BlockList       []string
}

// DefaultScanOptions returns the discovery defaults.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// ConnectOptions configures connection establishment.
type ConnectOptions struct {
	ConnectTimeout time.Duration
}

// Link is the BLE link capability.
type Link interface {
	// Scan discovers devices until ctx is done or the configured duration
	// elapses, invoking onDevice for each discovery.
	Scan(ctx context.Context, opts *ScanOptions, onDevice DeviceHandler) error

	// Connect establishes a session with the device at addr.
	Connect(ctx context.Context, addr string, opts *ConnectOptions) (Session, error)
}

// Session is one connected device session.
type Session interface {
	// Address returns the peer address.
	Address() string

	// Subscribe arranges for notification frames from the given
	// characteristic to be delivered to onFrame.
	Subscribe(charUUID string, onFrame FrameHandler) error

	// Done is closed when the session ends, whether by Close or by the
	// device disconnecting.
	Done() <-chan struct{}

	// Close tears the session down. Idempotent.
	Close() error
}

// LinkState classifies link-level failures.
type LinkState string

const (
	StateNotConnected     LinkState = "not_connected"
	StateAlreadyConnected LinkState = "already_connected"
	StateDisconnected     LinkState = "disconnected"
)

// LinkError represents a link-state problem.
type LinkError struct {
	State LinkState
	Msg   string
}

func (e *LinkError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare LinkError values by State.
func (e *LinkError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*LinkError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for link states.
var (
	ErrNotConnected     = &LinkError{State: StateNotConnected}
	ErrAlreadyConnected = &LinkError{State: StateAlreadyConnected}
	ErrDisconnected     = &LinkError{State: StateDisconnected}
)

// ErrScanTimeout indicates a scan ended by its own deadline rather than an
// external cancellation.
var ErrScanTimeout = errors.New("scan timeout")
