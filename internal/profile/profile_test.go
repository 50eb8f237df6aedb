package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	p := &Profile{
		Name:          "ring",
		ButtonChar:    "0000FF31-0000-1000-8000-00805F9B34FB",
		ProximityChar: "0xFF32",
	}
	require.NoError(t, p.Normalize())
	assert.Equal(t, "ff31", p.ButtonChar)
	assert.Equal(t, "ff32", p.ProximityChar)
	assert.Equal(t, []string{"ff31", "ff32"}, p.Characteristics())
}

func TestNormalizeRejectsBadProfiles(t *testing.T) {
	assert.Error(t, (&Profile{Name: "no-button"}).Normalize())
	assert.Error(t, (&Profile{Name: "garbage", ButtonChar: "not-a-uuid"}).Normalize())
	assert.Error(t, (&Profile{Name: "bad-aux", ButtonChar: "ff31", TextChar: "zz"}).Normalize())
}

func TestDecodeButton(t *testing.T) {
	p := &Profile{ButtonChar: "ff31"}

	tests := []struct {
		name    string
		payload []byte
		want    Edge
		ok      bool
	}{
		{"binary press", []byte{0x01}, EdgePress, true},
		{"binary release", []byte{0x00}, EdgeRelease, true},
		{"ascii press", []byte("press"), EdgePress, true},
		{"ascii release mixed case", []byte("Release"), EdgeRelease, true},
		{"ascii down", []byte("down"), EdgePress, true},
		{"digit tokens", []byte("1"), EdgePress, true},
		{"empty payload", nil, 0, false},
		{"unknown byte", []byte{0x7f}, 0, false},
		{"multi-byte binary", []byte{0x01, 0x02}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edge, ok := p.DecodeButton(tt.payload)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, edge)
			}
		})
	}
}

func TestDecodeProximity(t *testing.T) {
	p := &Profile{ButtonChar: "ff31", ProximityChar: "ff32"}

	prox, ok := p.DecodeProximity([]byte("enter"))
	require.True(t, ok)
	assert.Equal(t, ProximityNear, prox)

	prox, ok = p.DecodeProximity([]byte{0x00})
	require.True(t, ok)
	assert.Equal(t, ProximityAway, prox)

	_, ok = p.DecodeProximity([]byte{0xde, 0xad})
	assert.False(t, ok)
}
