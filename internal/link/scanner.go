package link

import (
	"context"
	"sort"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/ringlink/internal/event"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

// DeviceEvent is one discovery report streamed during a scan.
type DeviceEvent struct {
	Type       DeviceEventType
	Descriptor Descriptor
}

// Scanner handles device discovery over a Link, deduplicating
// advertisements into a device registry and streaming discovery events.
type Scanner struct {
	link    Link
	devices *hashmap.Map[string, Descriptor]
	events  *event.RingChannel[DeviceEvent]
	logger  *logrus.Logger
}

// NewScanner creates a scanner over the given link.
func NewScanner(l Link, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		link:   l,
		events: event.NewRingChannel[DeviceEvent](100),
		logger: logger,
	}
}

// Scan performs discovery with the provided options and returns the devices
// found, strongest signal first.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]Descriptor, error) {
	s.devices = hashmap.New[string, Descriptor]()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	progressCallback("Scanning")

	err := s.link.Scan(ctx, opts, s.handleDiscovery)
	if err != nil {
		return nil, err
	}

	progressCallback("Processing results")

	devices := make([]Descriptor, 0, s.devices.Len())
	s.devices.Range(func(_ string, d Descriptor) bool {
		devices = append(devices, d)
		return true
	})
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].RSSI != devices[j].RSSI {
			return devices[i].RSSI > devices[j].RSSI
		}
		return devices[i].Address < devices[j].Address
	})

	s.logger.WithField("device_count", len(devices)).Info("Scan completed")
	return devices, nil
}

// handleDiscovery updates existing or adds a new device
func (s *Scanner) handleDiscovery(d Descriptor) {
	_, existing := s.devices.Get(d.Address)
	s.devices.Set(d.Address, d)

	ev := DeviceEvent{Descriptor: d}
	if existing {
		ev.Type = EventUpdated
	} else {
		ev.Type = EventNew
	}

	s.events.Send(ev)
}

// Events returns a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
