package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureDump(t *testing.T) {
	c, err := NewCapture(1024)
	require.NoError(t, err)

	c.Record("ff31", []byte{0x01})
	c.Record("ff31", []byte{0x00})
	c.Record("ff99", []byte{0xde, 0xad, 0xbe, 0xef})

	assert.Equal(t, []string{
		"ff31 01",
		"ff31 00",
		"ff99 deadbeef",
	}, c.Dump())

	// Dump is non-destructive.
	assert.Len(t, c.Dump(), 3)

	stored, evicted, skipped := c.Stats()
	assert.EqualValues(t, 3, stored)
	assert.EqualValues(t, 0, evicted)
	assert.EqualValues(t, 0, skipped)
}

func TestCaptureEvictsOldest(t *testing.T) {
	// Each record is 2+1+4+8 = 15 bytes; a 64-byte ring holds four.
	c, err := NewCapture(64)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Record("ff99", bytes.Repeat([]byte{byte(i)}, 8))
	}

	lines := c.Dump()
	require.NotEmpty(t, lines)
	assert.LessOrEqual(t, len(lines), 4)
	// Newest record always survives.
	assert.Contains(t, lines[len(lines)-1], "0909090909090909")

	stored, evicted, _ := c.Stats()
	assert.EqualValues(t, 10, stored)
	assert.EqualValues(t, int64(10-len(lines)), evicted)
}

func TestCaptureSkipsOversizedRecords(t *testing.T) {
	c, err := NewCapture(16)
	require.NoError(t, err)

	c.Record("ff31", make([]byte, 64))
	assert.Empty(t, c.Dump())

	_, _, skipped := c.Stats()
	assert.EqualValues(t, 1, skipped)
}

func TestCaptureEmptyDump(t *testing.T) {
	c, err := NewCapture(32)
	require.NoError(t, err)
	assert.Empty(t, c.Dump())

	_, err = NewCapture(0)
	require.Error(t, err)
}

func TestCaptureZeroLengthPayload(t *testing.T) {
	c, err := NewCapture(64)
	require.NoError(t, err)

	c.Record("ff31", nil)
	assert.Equal(t, []string{"ff31 "}, c.Dump())
}
