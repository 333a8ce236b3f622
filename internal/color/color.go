// Package color normalises user-supplied colors to the #rrggbb strings the
// viewer expects.
package color

import (
	"fmt"
	imgcolor "image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Parse accepts #rgb, #rrggbb, #rrggbbaa (alpha dropped), rrggbb without the
// hash, or a CSS color name.
func Parse(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", fmt.Errorf("empty color")
	}
	if c, ok := colornames.Map[s]; ok {
		return Hex(c), nil
	}
	hex := strings.TrimPrefix(s, "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	case 8:
		hex = hex[:6]
	default:
		return "", fmt.Errorf("unrecognized color %q", s)
	}
	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return "", fmt.Errorf("unrecognized color %q", s)
	}
	return "#" + hex, nil
}

// Hex formats c as #rrggbb.
func Hex(c imgcolor.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// RGB converts a float triple in [0,1] to #rrggbb.
func RGB(v []float64) (string, error) {
	if len(v) != 3 {
		return "", fmt.Errorf("rgb color needs 3 components, got %d", len(v))
	}
	var out [3]uint8
	for i, f := range v {
		if f < 0 || f > 1 {
			return "", fmt.Errorf("rgb component %v outside [0, 1]", f)
		}
		out[i] = uint8(f*255 + 0.5)
	}
	return Hex(imgcolor.RGBA{R: out[0], G: out[1], B: out[2], A: 255}), nil
}
