package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
	"github.com/sirupsen/logrus"

	"github.com/srg/ringlink/internal/async"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
var DeviceFactory = func() (ble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		if strings.Contains(err.Error(), "central manager has invalid state") {
			if strings.Contains(err.Error(), "have=4") { // StatePoweredOff
				return nil, fmt.Errorf("Bluetooth is turned off - please enable Bluetooth and retry")
			}
			return nil, fmt.Errorf("Bluetooth is not ready - %w", err)
		}
		return nil, err
	}
	return dev, nil
}

// DefaultConnectTimeout bounds session establishment when the caller does
// not set one.
const DefaultConnectTimeout = 30 * time.Second

// BLELink is the production Link backed by go-ble.
type BLELink struct {
	logger *logrus.Logger
}

// NewBLELink creates the go-ble backed link.
func NewBLELink(logger *logrus.Logger) *BLELink {
	if logger == nil {
		logger = logrus.New()
	}
	return &BLELink{logger: logger}
}

// Scan discovers devices, invoking onDevice for every advertisement that
// passes the allow/block filters. Callers that want one report per address
// dedupe on top, see Scanner.
func (l *BLELink) Scan(ctx context.Context, opts *ScanOptions, onDevice DeviceHandler) error {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if onDevice == nil {
		onDevice = func(Descriptor) {}
	}

	dev, err := DeviceFactory()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", err)
	}

	seen := hashmap.New[string, Descriptor]()

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	l.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")

	err = dev.Scan(scanCtx, opts.DuplicateFilter, func(adv ble.Advertisement) {
		addr := adv.Addr().String()
		if !shouldIncludeDevice(addr, opts) {
			return
		}

		desc := Descriptor{
			Address:     addr,
			Name:        adv.LocalName(),
			RSSI:        adv.RSSI(),
			Connectable: adv.Connectable(),
			Services:    serviceUUIDs(adv),
		}
		if prev, existing := seen.GetOrInsert(addr, desc); existing {
			// Later advertisements may omit the local name; keep the known one.
			if desc.Name == "" {
				desc.Name = prev.Name
			}
			seen.Set(addr, desc)
		} else {
			l.logger.WithFields(logrus.Fields{
				"device":  desc.Name,
				"address": desc.Address,
				"rssi":    desc.RSSI,
			}).Info("Discovered new device")
		}
		onDevice(desc)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", err)
	}

	l.logger.WithField("device_count", seen.Len()).Info("BLE scan completed")
	return nil
}

func serviceUUIDs(adv ble.Advertisement) []string {
	svcs := adv.Services()
	if len(svcs) == 0 {
		return nil
	}
	out := make([]string, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, NormalizeUUID(s.String()))
	}
	return out
}

func shouldIncludeDevice(addr string, opts *ScanOptions) bool {
	for _, blocked := range opts.BlockList {
		if addr == blocked {
			return false
		}
	}
	if len(opts.AllowList) > 0 {
		for _, a := range opts.AllowList {
			if addr == a {
				return true
			}
		}
		return false
	}
	return true
}

// Connect establishes a session with the device at addr and discovers its
// GATT profile so characteristics can be subscribed by UUID.
func (l *BLELink) Connect(ctx context.Context, addr string, opts *ConnectOptions) (Session, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("device address is empty")
	}
	if opts == nil {
		opts = &ConnectOptions{}
	}
	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	l.logger.WithFields(logrus.Fields{
		"address": addr,
		"timeout": timeout,
	}).Info("Connecting to BLE device...")

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ble.Dial(connCtx, ble.NewAddr(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", addr, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			l.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	sess := &bleSession{
		addr:   addr,
		client: client,
		chars:  make(map[string]*ble.Characteristic),
		done:   make(chan struct{}),
		logger: l.logger,
	}
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			sess.chars[NormalizeUUID(char.UUID.String())] = char
		}
	}

	// CoreBluetooth surfaces disconnects through the client's Disconnected()
	// channel; propagate that to Done so the pipeline can react.
	if monitored, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		async.Go(nil, "ble-disconnect-monitor", l.logger, func(context.Context) {
			select {
			case <-monitored.Disconnected():
				l.logger.WithField("address", addr).Warn("Device reported disconnection")
				sess.markDone()
			case <-sess.done:
			}
		})
	} else {
		l.logger.Debug("Client does not support Disconnected() channel (non-Darwin platform?)")
	}

	l.logger.WithFields(logrus.Fields{
		"address":         addr,
		"characteristics": len(sess.chars),
	}).Info("BLE device connected")
	return sess, nil
}

// bleSession is one live go-ble connection.
type bleSession struct {
	addr   string
	client ble.Client
	chars  map[string]*ble.Characteristic
	logger *logrus.Logger

	mu         sync.Mutex
	subscribed []*ble.Characteristic
	closed     bool
	done       chan struct{}
}

func (s *bleSession) Address() string { return s.addr }

func (s *bleSession) Subscribe(charUUID string, onFrame FrameHandler) error {
	if onFrame == nil {
		return fmt.Errorf("frame handler cannot be nil")
	}
	normalized := NormalizeUUID(charUUID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	char, ok := s.chars[normalized]
	if !ok {
		return fmt.Errorf("characteristic %q not found on device %s", charUUID, s.addr)
	}
	if char.Property&ble.CharNotify == 0 && char.Property&ble.CharIndicate == 0 {
		return fmt.Errorf("characteristic %q does not support notifications", charUUID)
	}

	err := s.client.Subscribe(char, false, func(data []byte) {
		// The BLE stack reuses its buffer after the callback returns.
		payload := make([]byte, len(data))
		copy(payload, data)
		onFrame(RawFrame{Characteristic: normalized, Payload: payload})
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", charUUID, err)
	}

	s.subscribed = append(s.subscribed, char)
	s.logger.WithFields(logrus.Fields{
		"address":   s.addr,
		"char_uuid": normalized,
	}).Info("Subscribed to characteristic notifications")
	return nil
}

func (s *bleSession) Done() <-chan struct{} { return s.done }

func (s *bleSession) markDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *bleSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	subscribed := s.subscribed
	s.subscribed = nil
	client := s.client
	s.mu.Unlock()

	var unsubscribeErrors []string
	for _, char := range subscribed {
		err1 := client.Unsubscribe(char, false) // notify
		err2 := client.Unsubscribe(char, true)  // indicate
		if err1 != nil && err2 != nil {
			unsubscribeErrors = append(unsubscribeErrors, fmt.Sprintf("%s: notify=%v, indicate=%v", char.UUID, err1, err2))
		}
	}
	if len(unsubscribeErrors) > 0 {
		s.logger.WithField("errors", strings.Join(unsubscribeErrors, "; ")).Warn("Failed to unsubscribe from some characteristics during disconnect")
	}

	err := client.CancelConnection()
	if err != nil {
		s.logger.WithField("error", err).Warn("BLE device disconnected with errors")
	} else {
		s.logger.WithField("address", s.addr).Info("BLE device disconnected")
	}
	return err
}
