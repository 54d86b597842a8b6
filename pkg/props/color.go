package props

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a packed 0xAARRGGBB value.
type Color uint32

// Transparent is the fully transparent color.
const Transparent Color = 0

// Alpha returns the alpha channel.
func (c Color) Alpha() uint8 { return uint8(c >> 24) }

// RGBA returns the channels.
func (c Color) RGBA() (r, g, b, a uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c), uint8(c >> 24)
}

func (c Color) String() string {
	return fmt.Sprintf("#%08x", uint32(c))
}

var namedColors = map[string]Color{
	"transparent": Transparent,
	"black":       0xff000000,
	"white":       0xffffffff,
	"red":         0xffff0000,
	"green":       0xff008000,
	"blue":        0xff0000ff,
	"yellow":      0xffffff00,
	"gray":        0xff808080,
	"grey":        0xff808080,
	"orange":      0xffffa500,
	"purple":      0xff800080,
}

// ParseColor accepts packed integers, color names and #rgb, #rrggbb or
// #rrggbbaa strings.
func ParseColor(v any) (Color, error) {
	if f, ok := ToFloat(v); ok {
		return Color(uint32(int64(f))), nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("color must be a number or string, got %T", v)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return 0, fmt.Errorf("unknown color %q", s)
	}
	hex := s[1:]
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		fallthrough
	case 6:
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q: %w", s, err)
		}
		return Color(0xff000000 | uint32(n)), nil
	case 8:
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q: %w", s, err)
		}
		// #rrggbbaa
		return Color(uint32(n)>>8 | uint32(n)<<24), nil
	}
	return 0, fmt.Errorf("invalid color %q", s)
}

// Color returns the parsed color for key. ok is false when the key is
// absent, nil or unparsable.
func (m Map) Color(key string) (c Color, ok bool) {
	v := m[key]
	if v == nil {
		return 0, false
	}
	c, err := ParseColor(v)
	if err != nil {
		return 0, false
	}
	return c, true
}
