// Package layer implements the image, segmentation and annotation layers
// of a viewer state.
package layer

import (
	"slices"

	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/datamap"
)

// Type values as they appear on the wire.
const (
	TypeImage        = "image"
	TypeSegmentation = "segmentation"
	TypeAnnotation   = "annotation"
)

// WireEnv is the state-wide context a layer needs to serialize itself.
type WireEnv struct {
	Space coords.Space
	// RewriteSource applies site-specific access prefixes. Nil leaves URLs
	// untouched.
	RewriteSource func(url string, image bool) string
}

func (e WireEnv) rewrite(url string, image bool) string {
	if e.RewriteSource == nil {
		return url
	}
	return e.RewriteSource(url, image)
}

// Layer is one named entry of a viewer state.
type Layer interface {
	Name() string
	Type() string
	DataMaps() *datamap.Registry
	// Sources lists the layer's data sources, for resolution inference.
	Sources() []Source
	Clone() Layer
	Wire(env WireEnv) (map[string]any, error)
}

// Base holds the configuration every layer type shares.
type Base struct {
	name     string
	Visible  bool
	Archived bool
	Pickable bool
	// Resolution is the default resolution of data mapped into the layer.
	Resolution []float64
	Shader     string

	datamaps *datamap.Registry
}

func newBase(name string) Base {
	return Base{name: name, Visible: true, Pickable: true, datamaps: &datamap.Registry{}}
}

// Name returns the layer name.
func (b *Base) Name() string { return b.name }

// DataMaps returns the layer's pending bindings.
func (b *Base) DataMaps() *datamap.Registry { return b.datamaps }

func (b *Base) cloneBase() Base {
	c := *b
	c.Resolution = slices.Clone(b.Resolution)
	c.datamaps = b.datamaps.Clone()
	return c
}

func (b *Base) wire(typ string) map[string]any {
	out := map[string]any{"type": typ, "name": b.name}
	if !b.Visible {
		out["visible"] = false
	}
	if b.Archived {
		out["archived"] = true
	}
	if !b.Pickable {
		out["pick"] = false
	}
	if b.Shader != "" {
		out["shader"] = b.Shader
	}
	return out
}
