package link

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestScannerSortsByRSSI(t *testing.T) {
	fake := NewFakeLink(
		Descriptor{Address: "aa:aa", Name: "ring-a", RSSI: -70},
		Descriptor{Address: "bb:bb", Name: "ring-b", RSSI: -40},
		Descriptor{Address: "cc:cc", Name: "ring-c", RSSI: -55},
	)
	scanner := NewScanner(fake, quietLogger())

	devices, err := scanner.Scan(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, "bb:bb", devices[0].Address)
	assert.Equal(t, "cc:cc", devices[1].Address)
	assert.Equal(t, "aa:aa", devices[2].Address)
}

func TestScannerDeduplicatesAndStreamsEvents(t *testing.T) {
	fake := NewFakeLink(
		Descriptor{Address: "aa:aa", Name: "ring-a", RSSI: -70},
		Descriptor{Address: "aa:aa", Name: "ring-a", RSSI: -45},
	)
	scanner := NewScanner(fake, quietLogger())

	var phases []string
	devices, err := scanner.Scan(context.Background(), nil, func(phase string) {
		phases = append(phases, phase)
	})
	require.NoError(t, err)

	// The registry holds one device with the latest advertisement.
	require.Len(t, devices, 1)
	assert.Equal(t, -45, devices[0].RSSI)
	assert.Equal(t, []string{"Scanning", "Processing results"}, phases)

	// Both advertisements were streamed, classified new then updated.
	first := <-scanner.Events()
	assert.Equal(t, EventNew, first.Type)
	assert.Equal(t, -70, first.Descriptor.RSSI)

	second := <-scanner.Events()
	assert.Equal(t, EventUpdated, second.Type)
	assert.Equal(t, -45, second.Descriptor.RSSI)
}

func TestScannerAppliesFilters(t *testing.T) {
	fake := NewFakeLink(
		Descriptor{Address: "aa:aa", RSSI: -40},
		Descriptor{Address: "bb:bb", RSSI: -50},
	)
	scanner := NewScanner(fake, quietLogger())

	devices, err := scanner.Scan(context.Background(), &ScanOptions{BlockList: []string{"aa:aa"}}, nil)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "bb:bb", devices[0].Address)
}
