package link

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FakeLink is a scripted Link for tests. Scan reports a fixed device list
// and Connect hands out FakeSessions whose notifications the test injects.
type FakeLink struct {
	mu         sync.Mutex
	devices    []Descriptor
	sessions   map[string]*FakeSession
	connectErr error
}

// NewFakeLink creates a fake link advertising the given devices.
func NewFakeLink(devices ...Descriptor) *FakeLink {
	return &FakeLink{
		devices:  devices,
		sessions: make(map[string]*FakeSession),
	}
}

// AddDevice adds a device to subsequent scans.
func (f *FakeLink) AddDevice(d Descriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, d)
}

// FailConnect makes every Connect return err until cleared with nil.
func (f *FakeLink) FailConnect(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

func (f *FakeLink) Scan(ctx context.Context, opts *ScanOptions, onDevice DeviceHandler) error {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	f.mu.Lock()
	devices := make([]Descriptor, len(f.devices))
	copy(devices, f.devices)
	f.mu.Unlock()

	for _, d := range devices {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !shouldIncludeDevice(d.Address, opts) {
			continue
		}
		if onDevice != nil {
			onDevice(d)
		}
	}
	return nil
}

func (f *FakeLink) Connect(ctx context.Context, addr string, _ *ConnectOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}

	known := false
	for _, d := range f.devices {
		if d.Address == addr {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown device %q: %w", addr, ErrNotConnected)
	}

	sess := &FakeSession{
		addr:     addr,
		handlers: make(map[string][]FrameHandler),
		done:     make(chan struct{}),
	}
	f.sessions[addr] = sess
	return sess, nil
}

// Session returns the most recent session for addr, or nil.
func (f *FakeLink) Session(addr string) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[addr]
}

// FakeSession is a connected FakeLink session. Tests push notification
// frames through Inject and simulate a remote disconnect with Drop.
type FakeSession struct {
	addr string

	mu       sync.Mutex
	handlers map[string][]FrameHandler
	closed   bool
	done     chan struct{}
}

func (s *FakeSession) Address() string { return s.addr }

func (s *FakeSession) Subscribe(charUUID string, onFrame FrameHandler) error {
	if onFrame == nil {
		return fmt.Errorf("frame handler cannot be nil")
	}
	normalized := NormalizeUUID(charUUID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	s.handlers[normalized] = append(s.handlers[normalized], onFrame)
	return nil
}

func (s *FakeSession) Done() <-chan struct{} { return s.done }

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Drop simulates the device disconnecting on its own.
func (s *FakeSession) Drop() {
	_ = s.Close()
}

// Inject delivers a notification frame to the subscribers of charUUID.
// It returns the number of handlers invoked.
func (s *FakeSession) Inject(charUUID string, payload []byte) int {
	normalized := NormalizeUUID(charUUID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	handlers := make([]FrameHandler, len(s.handlers[normalized]))
	copy(handlers, s.handlers[normalized])
	s.mu.Unlock()

	for _, h := range handlers {
		h(RawFrame{Characteristic: normalized, Payload: payload})
	}
	return len(handlers)
}

// Subscribed returns the characteristic UUIDs with at least one handler,
// sorted for stable assertions.
func (s *FakeSession) Subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.handlers))
	for uuid := range s.handlers {
		out = append(out, uuid)
	}
	sort.Strings(out)
	return out
}
