package action

import (
	"fmt"
	"sort"
	"sync/atomic"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/ringlink/internal/event"
)

// NoopAction is the action every semantic kind resolves to unless an
// explicit binding overrides it.
const NoopAction = "noop"

// Entry is a single kind-to-action binding inside a Mapping.
type Entry struct {
	Kind   event.Kind
	Action string
}

// Mapping is an immutable, total assignment of semantic event kinds to
// action ids. Every kind resolves to some action; kinds without an
// explicit binding resolve to NoopAction. Iteration order follows the
// kind declaration order so table output stays stable across runs.
type Mapping struct {
	entries *orderedmap.OrderedMap[event.Kind, string]
}

// NewMapping builds a total mapping from the explicit bindings given.
// Unknown kinds in explicit are rejected so configuration typos surface
// at startup instead of silently routing nothing.
func NewMapping(explicit map[event.Kind]string) (*Mapping, error) {
	known := make(map[event.Kind]bool, len(event.Kinds()))
	entries := orderedmap.New[event.Kind, string](orderedmap.WithCapacity[event.Kind, string](len(event.Kinds())))
	for _, kind := range event.Kinds() {
		known[kind] = true
		actionID := NoopAction
		if a, ok := explicit[kind]; ok {
			if a == "" {
				return nil, fmt.Errorf("mapping for %s: empty action id", kind)
			}
			actionID = a
		}
		entries.Set(kind, actionID)
	}
	for kind := range explicit {
		if !known[kind] {
			return nil, fmt.Errorf("mapping references unknown event kind %q", kind)
		}
	}
	return &Mapping{entries: entries}, nil
}

// MustMapping is NewMapping for statically known bindings; it panics on error.
func MustMapping(explicit map[event.Kind]string) *Mapping {
	m, err := NewMapping(explicit)
	if err != nil {
		panic(err)
	}
	return m
}

// Resolve returns the action id bound to the given kind.
func (m *Mapping) Resolve(kind event.Kind) string {
	if a, ok := m.entries.Get(kind); ok {
		return a
	}
	return NoopAction
}

// Entries returns all bindings in declaration order.
func (m *Mapping) Entries() []Entry {
	out := make([]Entry, 0, m.entries.Len())
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry{Kind: pair.Key, Action: pair.Value})
	}
	return out
}

// Actions returns the distinct action ids the mapping references, sorted.
func (m *Mapping) Actions() []string {
	seen := make(map[string]bool, m.entries.Len())
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		seen[pair.Value] = true
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Snapshot is an atomically swappable reference to the active Mapping.
// Readers resolve against a consistent snapshot; a swap never tears an
// in-flight lookup.
type Snapshot struct {
	ptr atomic.Pointer[Mapping]
}

// NewSnapshot creates a snapshot holding the given initial mapping.
func NewSnapshot(initial *Mapping) *Snapshot {
	s := &Snapshot{}
	s.ptr.Store(initial)
	return s
}

// Load returns the current mapping.
func (s *Snapshot) Load() *Mapping {
	return s.ptr.Load()
}

// Swap installs a replacement mapping and returns the previous one.
func (s *Snapshot) Swap(next *Mapping) *Mapping {
	return s.ptr.Swap(next)
}
