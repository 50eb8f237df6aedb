// Package profile describes a ring device: which characteristics carry
// button, proximity, and reserved channels, and how their payloads decode.
//
// The exact GATT layout of ring firmware varies by vendor and revision, so
// everything here is configuration; undecodable traffic is passed through as
// raw diagnostics rather than rejected.
package profile

import (
	"fmt"
	"strings"

	"github.com/srg/ringlink/internal/link"
)

// Edge is one observed transition of the button signal.
type Edge int

const (
	EdgePress Edge = iota
	EdgeRelease
)

func (e Edge) String() string {
	if e == EdgePress {
		return "press"
	}
	return "release"
}

// Proximity is a decoded proximity transition.
type Proximity int

const (
	ProximityNear Proximity = iota
	ProximityAway
)

// Profile identifies the characteristics of one ring device model.
// ButtonChar is required for gesture events; the rest are optional.
type Profile struct {
	Name          string `yaml:"name"`
	ButtonChar    string `yaml:"button_char"`
	ProximityChar string `yaml:"proximity_char,omitempty"`

	// Reserved channels; frames on these pass through as raw diagnostics.
	AudioChar string `yaml:"audio_char,omitempty"`
	TextChar  string `yaml:"text_char,omitempty"`
}

// Normalize canonicalizes all characteristic UUIDs and validates the profile.
func (p *Profile) Normalize() error {
	if p.ButtonChar == "" {
		return fmt.Errorf("profile %q: button characteristic is required", p.Name)
	}

	normalized, err := link.ValidateUUID(p.ButtonChar)
	if err != nil {
		return fmt.Errorf("profile %q: button characteristic: %w", p.Name, err)
	}
	p.ButtonChar = normalized[0]

	for name, field := range map[string]*string{
		"proximity": &p.ProximityChar,
		"audio":     &p.AudioChar,
		"text":      &p.TextChar,
	} {
		if *field == "" {
			continue
		}
		normalized, err := link.ValidateUUID(*field)
		if err != nil {
			return fmt.Errorf("profile %q: %s characteristic: %w", p.Name, name, err)
		}
		*field = normalized[0]
	}
	return nil
}

// Characteristics returns every mapped characteristic UUID, button first.
func (p *Profile) Characteristics() []string {
	out := []string{p.ButtonChar}
	for _, c := range []string{p.ProximityChar, p.AudioChar, p.TextChar} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// DecodeButton interprets a button-characteristic payload as a signal edge.
// Two encodings are accepted: a single status byte (0x01 press, 0x00
// release), and ASCII tokens for firmware that reports in text. Anything
// else is unrecognized and falls through to the raw diagnostics path.
func (p *Profile) DecodeButton(payload []byte) (Edge, bool) {
	switch token(payload) {
	case "press", "down", "1":
		return EdgePress, true
	case "release", "up", "0":
		return EdgeRelease, true
	}

	if len(payload) == 1 {
		switch payload[0] {
		case 0x01:
			return EdgePress, true
		case 0x00:
			return EdgeRelease, true
		}
	}
	return 0, false
}

// DecodeProximity interprets a proximity-characteristic payload.
func (p *Profile) DecodeProximity(payload []byte) (Proximity, bool) {
	switch token(payload) {
	case "enter", "near", "1":
		return ProximityNear, true
	case "exit", "away", "0":
		return ProximityAway, true
	}

	if len(payload) == 1 {
		switch payload[0] {
		case 0x01:
			return ProximityNear, true
		case 0x00:
			return ProximityAway, true
		}
	}
	return 0, false
}

// token extracts a printable lowercase token from a payload, or "" if the
// payload is not plain text.
func token(payload []byte) string {
	if len(payload) == 0 || len(payload) > 16 {
		return ""
	}
	for _, b := range payload {
		if b < 0x20 || b > 0x7e {
			return ""
		}
	}
	return strings.ToLower(strings.TrimSpace(string(payload)))
}
