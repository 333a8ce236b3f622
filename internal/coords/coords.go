package coords

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrShapeMismatch is returned when resolution, units and names disagree in length.
var ErrShapeMismatch = errors.New("shape mismatch")

// DefaultNames are the axis names used when none are supplied.
var DefaultNames = []string{"x", "y", "z"}

// DefaultUnit is broadcast across every axis when no units are given.
const DefaultUnit = "nm"

// Space describes how raw coordinates map to physical units.
// A Space with no resolution is unset and must be inferred or supplied
// before it can be serialized.
type Space struct {
	Resolution []float64
	Units      []string
	Names      []string
}

// New builds a Space. A single unit is broadcast to every axis; nil names
// default to x, y, z.
func New(resolution []float64, units []string, names []string) (Space, error) {
	if len(resolution) == 0 {
		return Space{}, nil
	}
	if len(units) == 0 {
		units = []string{DefaultUnit}
	}
	if len(units) == 1 && len(resolution) > 1 {
		u := units[0]
		units = make([]string, len(resolution))
		for i := range units {
			units[i] = u
		}
	}
	if names == nil {
		names = DefaultNames
	}
	if len(units) != len(names) {
		return Space{}, fmt.Errorf("%w: %d units for %d names", ErrShapeMismatch, len(units), len(names))
	}
	if len(resolution) != len(names) {
		return Space{}, fmt.Errorf("%w: resolution has %d values for %d names", ErrShapeMismatch, len(resolution), len(names))
	}
	for _, u := range units {
		if _, ok := unitScale[u]; !ok {
			return Space{}, fmt.Errorf("unknown unit %q", u)
		}
	}
	return Space{
		Resolution: append([]float64(nil), resolution...),
		Units:      append([]string(nil), units...),
		Names:      append([]string(nil), names...),
	}, nil
}

// MustNew is New for static configuration; it panics on error.
func MustNew(resolution []float64, units []string, names []string) Space {
	s, err := New(resolution, units, names)
	if err != nil {
		panic(err)
	}
	return s
}

// IsSet reports whether the space carries a resolution.
func (s Space) IsSet() bool {
	return len(s.Resolution) > 0
}

// Dim returns the number of axes.
func (s Space) Dim() int {
	return len(s.Resolution)
}

// Clone returns a deep copy.
func (s Space) Clone() Space {
	if !s.IsSet() {
		return Space{}
	}
	return Space{
		Resolution: append([]float64(nil), s.Resolution...),
		Units:      append([]string(nil), s.Units...),
		Names:      append([]string(nil), s.Names...),
	}
}

// Dimensions renders the wire form: axis name -> [scale in SI units, SI unit].
func (s Space) Dimensions() map[string]any {
	if !s.IsSet() {
		return map[string]any{}
	}
	out := make(map[string]any, len(s.Names))
	for i, name := range s.Names {
		scale, unit := ToSI(s.Resolution[i], s.Units[i])
		out[name] = []any{scale, unit}
	}
	return out
}

// FromDimensions parses the wire form produced by Dimensions. Axis order
// follows names; absent names fall back to x, y, z.
func FromDimensions(dims map[string]any, names []string) (Space, error) {
	if len(dims) == 0 {
		return Space{}, nil
	}
	if names == nil {
		names = DefaultNames
	}
	res := make([]float64, 0, len(names))
	units := make([]string, 0, len(names))
	for _, name := range names {
		raw, ok := dims[name].([]any)
		if !ok || len(raw) != 2 {
			return Space{}, fmt.Errorf("%w: dimension %q", ErrShapeMismatch, name)
		}
		scale, ok := raw[0].(float64)
		if !ok {
			return Space{}, fmt.Errorf("dimension %q: scale is %T", name, raw[0])
		}
		unit, _ := raw[1].(string)
		v, u := FromSI(scale, unit)
		res = append(res, v)
		units = append(units, u)
	}
	return New(res, units, names)
}

// ScaleFactor returns dataResolution ./ viewerResolution. A nil data
// resolution means the data is already in viewer units.
func ScaleFactor(dataResolution, viewerResolution []float64) ([]float64, error) {
	if len(viewerResolution) == 0 {
		return nil, fmt.Errorf("%w: viewer resolution is unset", ErrShapeMismatch)
	}
	if len(dataResolution) == 0 {
		return ones(len(viewerResolution)), nil
	}
	if len(dataResolution) != len(viewerResolution) {
		return nil, fmt.Errorf("%w: data resolution %v vs viewer resolution %v", ErrShapeMismatch, dataResolution, viewerResolution)
	}
	out := make([]float64, len(dataResolution))
	floats.DivTo(out, dataResolution, viewerResolution)
	return out, nil
}

// Scale multiplies a point by factor elementwise into a new slice.
func Scale(point, factor []float64) ([]float64, error) {
	if factor == nil {
		return append([]float64(nil), point...), nil
	}
	if len(point) != len(factor) {
		return nil, fmt.Errorf("%w: point has %d coordinates, scale has %d", ErrShapeMismatch, len(point), len(factor))
	}
	out := make([]float64, len(point))
	floats.MulTo(out, point, factor)
	return out, nil
}

// IsIdentity reports whether every element of factor is 1.
func IsIdentity(factor []float64) bool {
	for _, f := range factor {
		if f != 1 {
			return false
		}
	}
	return true
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
