// Package mood defines the mood catalog and the events that carry moods across the system.
package mood

import (
	"fmt"
	"strings"
)

// Kind is one of the fixed set of mood categories
type Kind string

const (
	KindHappy    Kind = "happy"
	KindLove     Kind = "love"
	KindSad      Kind = "sad"
	KindAngry    Kind = "angry"
	KindAnxious  Kind = "anxious"
	KindPeaceful Kind = "peaceful"
	KindExcited  Kind = "excited"
	KindTired    Kind = "tired"
)

// Color is a 24-bit RGB value (0xRRGGBB)
type Color uint32

// RGB splits the color into channels
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Hex returns the CSS form, e.g. "#FFD93D"
func (c Color) Hex() string {
	return fmt.Sprintf("#%06X", uint32(c)&0xFFFFFF)
}

type kindInfo struct {
	label string
	color Color
}

// catalog order is significant: it breaks ties in mood statistics
var kindOrder = []Kind{
	KindHappy,
	KindLove,
	KindSad,
	KindAngry,
	KindAnxious,
	KindPeaceful,
	KindExcited,
	KindTired,
}

var kindTable = map[Kind]kindInfo{
	KindHappy:    {"Happy", 0xFFD93D},
	KindLove:     {"Love", 0xFF6B6B},
	KindSad:      {"Sad", 0x4ECDC4},
	KindAngry:    {"Angry", 0xFF8C42},
	KindAnxious:  {"Anxious", 0xA855F7},
	KindPeaceful: {"Peaceful", 0x22C55E},
	KindExcited:  {"Excited", 0xF97316},
	KindTired:    {"Tired", 0x6B7280},
}

// Kinds returns the catalog in its fixed order
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	_, ok := kindTable[k]
	return ok
}

// Label returns the display label, or the raw value for unknown kinds
func (k Kind) Label() string {
	if info, ok := kindTable[k]; ok {
		return info.label
	}
	return string(k)
}

// Color returns the display color; unknown kinds are white
func (k Kind) Color() Color {
	if info, ok := kindTable[k]; ok {
		return info.color
	}
	return 0xFFFFFF
}

// Index returns the catalog position of k, or -1
func (k Kind) Index() int {
	for i, c := range kindOrder {
		if c == k {
			return i
		}
	}
	return -1
}

// ParseKind accepts a kind name in any case
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
