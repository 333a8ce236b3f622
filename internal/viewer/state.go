// Package viewer assembles layers into a viewer state and serializes it to
// the wire document and shareable URLs.
package viewer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/datamap"
	"github.com/agentic-research/ngstate/internal/layer"
	"github.com/agentic-research/ngstate/internal/sourceinfo"
	"github.com/agentic-research/ngstate/internal/table"
)

// ErrDuplicateLayerName is returned when a layer name is already taken.
var ErrDuplicateLayerName = errors.New("duplicate layer name")

// Layout is a panel arrangement.
type Layout string

const (
	LayoutXY        Layout = "xy"
	LayoutYZ        Layout = "yz"
	LayoutXZ        Layout = "xz"
	LayoutXY3D      Layout = "xy-3d"
	LayoutXZ3D      Layout = "xz-3d"
	LayoutYZ3D      Layout = "yz-3d"
	Layout4Panel    Layout = "4panel"
	Layout3D        Layout = "3d"
	Layout4PanelAlt Layout = "4panel-alt"
)

var layouts = []Layout{LayoutXY, LayoutYZ, LayoutXZ, LayoutXY3D, LayoutXZ3D, LayoutYZ3D, Layout4Panel, Layout3D, Layout4PanelAlt}

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return slices.Contains(layouts, l)
}

// SelectedLayer points the side panel at a layer.
type SelectedLayer struct {
	Name    string
	Visible bool
}

// State is the top-level viewer state. Layers keep insertion order.
type State struct {
	Space        coords.Space
	Position     []float64
	ScaleImagery float64
	Scale3D      float64
	ShowSlices   bool
	Layout       Layout
	Selected     *SelectedLayer

	// Site and BaseURL pick the deployment; BaseURL wins when set.
	Site    string
	BaseURL string
	Sites   *Sites

	// Inferrer fills in dimensions and position from sources when
	// InferCoordinates is set.
	Inferrer         sourceinfo.Inferrer
	InferCoordinates bool

	layers []layer.Layer
}

// New returns an empty state with the default view settings.
func New(space coords.Space) *State {
	return &State{
		Space:            space,
		ScaleImagery:     1.0,
		Scale3D:          50000,
		Layout:           LayoutXY3D,
		Sites:            DefaultSites(),
		InferCoordinates: true,
	}
}

// AddLayer appends l. Layer names are unique.
func (s *State) AddLayer(ls ...layer.Layer) error {
	for _, l := range ls {
		if _, ok := s.Layer(l.Name()); ok {
			return fmt.Errorf("%w: %q", ErrDuplicateLayerName, l.Name())
		}
		s.layers = append(s.layers, l)
	}
	return nil
}

// Layers returns the layers in display order.
func (s *State) Layers() []layer.Layer {
	return slices.Clone(s.layers)
}

// Layer finds a layer by name.
func (s *State) Layer(name string) (layer.Layer, bool) {
	for _, l := range s.layers {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}

// RemoveLayer drops a layer by name.
func (s *State) RemoveLayer(name string) bool {
	n := len(s.layers)
	s.layers = slices.DeleteFunc(s.layers, func(l layer.Layer) bool { return l.Name() == name })
	return len(s.layers) != n
}

// Clone returns a deep copy. Collaborators (Sites, Inferrer) are shared.
func (s *State) Clone() *State {
	c := *s
	c.Space = s.Space.Clone()
	c.Position = slices.Clone(s.Position)
	if s.Selected != nil {
		sel := *s.Selected
		c.Selected = &sel
	}
	c.layers = make([]layer.Layer, len(s.layers))
	for i, l := range s.layers {
		c.layers[i] = l.Clone()
	}
	return &c
}

// Data is the input to Map: tables keyed by DataMap key.
type Data map[string]*table.Table

// Single wraps one table under the empty key.
func Single(t *table.Table) Data {
	return Data{"": t}
}

// Map returns a copy of s with every DataMap whose key is in data
// resolved. s itself is untouched and can be mapped again.
func (s *State) Map(data Data) (*State, error) {
	c := s.Clone()
	if err := c.MapInPlace(data); err != nil {
		return nil, err
	}
	return c, nil
}

// MapInPlace resolves DataMaps on s directly. It must not run concurrently
// with any other use of s.
func (s *State) MapInPlace(data Data) error {
	return datamap.Resolve(s.targets(), data, datamap.Env{ViewerResolution: s.Space.Resolution})
}

// Pending reports whether any layer still waits for data.
func (s *State) Pending() bool {
	return datamap.Check(s.targets()) != nil
}

func (s *State) targets() []datamap.Target {
	out := make([]datamap.Target, len(s.layers))
	for i, l := range s.layers {
		out[i] = l
	}
	return out
}
