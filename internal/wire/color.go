package wire

import (
	"fmt"
	"strings"
)

// LedColor is one of the fixed colors the macropad LEDs can show.
type LedColor int

const (
	Black LedColor = iota
	Red
	Green
	Blue
	White
	Yellow
	Cyan
	Magenta
	Orange
	Purple
)

var ledColors = map[LedColor]struct {
	name string
	rgbw [4]byte
}{
	Black:   {"black", [4]byte{0x00, 0x00, 0x00, 0x00}},
	Red:     {"red", [4]byte{0x0A, 0x00, 0x00, 0x00}},
	Green:   {"green", [4]byte{0x00, 0x0A, 0x00, 0x00}},
	Blue:    {"blue", [4]byte{0x00, 0x00, 0x0A, 0x00}},
	White:   {"white", [4]byte{0x00, 0x00, 0x00, 0x0A}},
	Yellow:  {"yellow", [4]byte{0x0A, 0x0A, 0x00, 0x00}},
	Cyan:    {"cyan", [4]byte{0x00, 0x0A, 0x0A, 0x00}},
	Magenta: {"magenta", [4]byte{0x0A, 0x00, 0x0A, 0x00}},
	Orange:  {"orange", [4]byte{0x0A, 0x08, 0x00, 0x00}},
	Purple:  {"purple", [4]byte{0x09, 0x00, 0x09, 0x00}},
}

// RGBW returns the 4 channel bytes sent to the device. It is only
// meaningful for valid colors; Validate rejects commands carrying others.
func (c LedColor) RGBW() [4]byte {
	return ledColors[c].rgbw
}

func (c LedColor) Valid() bool {
	_, ok := ledColors[c]
	return ok
}

func (c LedColor) String() string {
	if v, ok := ledColors[c]; ok {
		return v.name
	}
	return fmt.Sprintf("LedColor(%d)", int(c))
}

func ParseLedColor(s string) (LedColor, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, v := range ledColors {
		if v.name == s {
			return c, nil
		}
	}
	return Black, fmt.Errorf("unknown led color %q", s)
}
