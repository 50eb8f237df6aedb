package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "short form untouched", in: "180d", want: "180d"},
		{name: "uppercase lowered", in: "FF31", want: "ff31"},
		{name: "dashes stripped", in: "0000ff31-0000-1000-8000-00805F9B34FB", want: "ff31"},
		{name: "sig base collapses to short form", in: "0000180d-0000-1000-8000-00805f9b34fb", want: "180d"},
		{name: "vendor uuid keeps full form", in: "6e400001-b5a3-f393-e0a9-e50e24dcca9e", want: "6e400001b5a3f393e0a9e50e24dcca9e"},
		{name: "0x prefix stripped", in: "0x180D", want: "180d"},
		{name: "braces stripped", in: "{0000180d-0000-1000-8000-00805f9b34fb}", want: "180d"},
		{name: "surrounding whitespace", in: "  180d ", want: "180d"},
		{name: "32bit form", in: "0000ff31", want: "0000ff31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeUUID(tt.in))
		})
	}
}

func TestShortenUUID(t *testing.T) {
	assert.Equal(t, "180d", ShortenUUID("180d"))
	assert.Equal(t, "6e400001", ShortenUUID("6e400001b5a3f393e0a9e50e24dcca9e"))
}

func TestValidateUUID(t *testing.T) {
	t.Run("valid forms normalize", func(t *testing.T) {
		got, err := ValidateUUID("FF31", "0000180d-0000-1000-8000-00805f9b34fb", "6e400001-b5a3-f393-e0a9-e50e24dcca9e")
		require.NoError(t, err)
		assert.Equal(t, []string{"ff31", "180d", "6e400001b5a3f393e0a9e50e24dcca9e"}, got)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		tests := []struct {
			name string
			in   []string
		}{
			{name: "no uuids", in: nil},
			{name: "empty string", in: []string{""}},
			{name: "non-hex", in: []string{"zzzz"}},
			{name: "odd length", in: []string{"ff311"}},
			{name: "second invalid", in: []string{"ff31", "nope"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ValidateUUID(tt.in...)
				require.Error(t, err)
			})
		}
	})
}
