package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/ringlink/internal/event"
)

func TestMappingIsTotal(t *testing.T) {
	m, err := NewMapping(map[event.Kind]string{
		event.ButtonSingle: "toggle_listen",
		event.ButtonDouble: "send_last_transcript",
	})
	require.NoError(t, err)

	assert.Equal(t, "toggle_listen", m.Resolve(event.ButtonSingle))
	assert.Equal(t, "send_last_transcript", m.Resolve(event.ButtonDouble))

	// Everything without an explicit binding resolves to noop.
	assert.Equal(t, NoopAction, m.Resolve(event.ButtonTriple))
	assert.Equal(t, NoopAction, m.Resolve(event.ButtonLong))
	assert.Equal(t, NoopAction, m.Resolve(event.RawNotify))
	assert.Equal(t, NoopAction, m.Resolve(event.ProximityEnter))
}

func TestMappingEntriesFollowKindOrder(t *testing.T) {
	m, err := NewMapping(map[event.Kind]string{
		event.ProximityExit: "cycle_llm",
		event.ButtonSingle:  "toggle_listen",
	})
	require.NoError(t, err)

	entries := m.Entries()
	require.Len(t, entries, len(event.Kinds()))
	for i, kind := range event.Kinds() {
		assert.Equal(t, kind, entries[i].Kind, "entry %d", i)
	}
}

func TestMappingRejectsBadBindings(t *testing.T) {
	tests := []struct {
		name     string
		explicit map[event.Kind]string
		wantErr  string
	}{
		{
			name:     "unknown kind",
			explicit: map[event.Kind]string{event.Kind("button_quadruple"): "noop"},
			wantErr:  "unknown event kind",
		},
		{
			name:     "empty action id",
			explicit: map[event.Kind]string{event.ButtonSingle: ""},
			wantErr:  "empty action id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMapping(tt.explicit)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMappingActions(t *testing.T) {
	m := MustMapping(map[event.Kind]string{
		event.ButtonSingle: "toggle_listen",
		event.ButtonDouble: "toggle_listen",
		event.ButtonLong:   "cycle_llm",
	})
	assert.Equal(t, []string{"cycle_llm", NoopAction, "toggle_listen"}, m.Actions())
}

func TestSnapshotSwap(t *testing.T) {
	first := MustMapping(nil)
	second := MustMapping(map[event.Kind]string{event.ButtonSingle: "toggle_listen"})

	snap := NewSnapshot(first)
	assert.Same(t, first, snap.Load())

	prev := snap.Swap(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, snap.Load())
	assert.Equal(t, "toggle_listen", snap.Load().Resolve(event.ButtonSingle))
}
