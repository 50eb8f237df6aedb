package event

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a semantic event derived from raw ring notifications.
type Kind int

const (
	// RawNotify carries an undecoded notification payload. It is the designed
	// fallback for unknown or malformed firmware traffic and never an error.
	RawNotify Kind = iota
	ButtonSingle
	ButtonDouble
	ButtonTriple
	ButtonLong
	ProximityEnter
	ProximityExit
)

var kindNames = map[Kind]string{
	RawNotify:      "raw_notify",
	ButtonSingle:   "button_single",
	ButtonDouble:   "button_double",
	ButtonTriple:   "button_triple",
	ButtonLong:     "button_long",
	ProximityEnter: "proximity_enter",
	ProximityExit:  "proximity_exit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a configuration token (e.g. "button_single") to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Kinds returns all defined kinds in declaration order.
// Used to verify mapping totality and to render mapping tables.
func Kinds() []Kind {
	return []Kind{RawNotify, ButtonSingle, ButtonDouble, ButtonTriple, ButtonLong, ProximityEnter, ProximityExit}
}

// Semantic is one interpreted, application-meaningful event. Instances are
// created by the pulse interpreter, fanned out by the bus, and discarded.
type Semantic struct {
	Kind           Kind      `json:"kind"`
	Timestamp      time.Time `json:"timestamp"`
	Characteristic string    `json:"characteristic"`
	// Payload is set for RawNotify only and holds the raw notification bytes.
	Payload []byte `json:"payload,omitempty"`
}

// MarshalJSON renders the kind by name so mirrored/telemetry JSON stays
// readable across firmware and schema revisions.
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (e Semantic) String() string {
	if e.Kind == RawNotify {
		return fmt.Sprintf("%s[%s len=%d]", e.Kind, e.Characteristic, len(e.Payload))
	}
	return fmt.Sprintf("%s[%s]", e.Kind, e.Characteristic)
}
