// Package diag keeps a bounded capture of recent raw notification payloads
// for post-hoc protocol inspection. Undecodable ring traffic ends up here
// instead of being lost.
package diag

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// Capture is a fixed-size byte ring of length-prefixed notification records.
// When full, the oldest records are evicted to make room. Safe for
// concurrent use.
type Capture struct {
	mu      sync.Mutex
	rb      *ringbuffer.RingBuffer
	stored  int64
	evicted int64
	skipped int64
}

// record layout: 2-byte big-endian record length, 1-byte characteristic
// length, characteristic UUID, payload.
const recordHeaderLen = 3

// NewCapture creates a capture ring of the given byte size.
func NewCapture(size int) (*Capture, error) {
	if size <= 0 {
		return nil, fmt.Errorf("capture size must be > 0")
	}
	return &Capture{rb: ringbuffer.New(size)}, nil
}

// Record stores one raw notification. Records that cannot fit the ring even
// when empty are counted and skipped.
func (c *Capture) Record(characteristic string, payload []byte) {
	if len(characteristic) > 255 {
		characteristic = characteristic[:255]
	}
	body := recordHeaderLen - 2 + len(characteristic) + len(payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	if 2+body > c.rb.Capacity() || body > 0xffff {
		c.skipped++
		return
	}

	for c.rb.Free() < 2+body {
		c.evictOldestLocked()
	}

	var header [recordHeaderLen]byte
	binary.BigEndian.PutUint16(header[0:2], uint16(body))
	header[2] = byte(len(characteristic))

	// Free space was verified above, the writes cannot come up short.
	_, _ = c.rb.Write(header[:])
	_, _ = c.rb.Write([]byte(characteristic))
	_, _ = c.rb.Write(payload)
	c.stored++
}

func (c *Capture) evictOldestLocked() {
	var lenBuf [2]byte
	if _, err := c.rb.Read(lenBuf[:]); err != nil {
		return
	}
	body := int(binary.BigEndian.Uint16(lenBuf[:]))
	discard := make([]byte, body)
	_, _ = c.rb.Read(discard)
	c.evicted++
}

// Dump returns the buffered records as "characteristic payload-hex" lines,
// oldest first, without consuming them.
func (c *Capture) Dump() []string {
	c.mu.Lock()
	snapshot := c.rb.Bytes(nil)
	c.mu.Unlock()

	var lines []string
	for off := 0; off+2 <= len(snapshot); {
		body := int(binary.BigEndian.Uint16(snapshot[off : off+2]))
		off += 2
		if off+body > len(snapshot) || body < 1 {
			break
		}
		rec := snapshot[off : off+body]
		off += body

		charLen := int(rec[0])
		if 1+charLen > len(rec) {
			break
		}
		characteristic := string(rec[1 : 1+charLen])
		payload := rec[1+charLen:]
		lines = append(lines, fmt.Sprintf("%s %s", characteristic, hex.EncodeToString(payload)))
	}
	return lines
}

// Stats returns how many records were stored, evicted by overflow, and
// skipped for being larger than the ring.
func (c *Capture) Stats() (stored, evicted, skipped int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored, c.evicted, c.skipped
}
