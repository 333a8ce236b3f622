package layer

import (
	"github.com/agentic-research/ngstate/internal/datamap"
	"github.com/agentic-research/ngstate/internal/table"
)

// ImageLayer displays volumetric image data.
type ImageLayer struct {
	Base
	sources []Source
	// Opacity is omitted from the wire when nil.
	Opacity *float64
}

// NewImageLayer returns a visible image layer with no sources.
func NewImageLayer(name string) *ImageLayer {
	return &ImageLayer{Base: newBase(name)}
}

func (l *ImageLayer) Type() string { return TypeImage }

func (l *ImageLayer) Sources() []Source { return l.sources }

// AddSource appends sources.
func (l *ImageLayer) AddSource(srcs ...Source) *ImageLayer {
	l.sources = append(l.sources, srcs...)
	return l
}

// AddSourceData defers sources to a table with a url column, at
// SourcePriority unless dm was pinned with WithPriority.
func (l *ImageLayer) AddSourceData(dm datamap.DataMap) *ImageLayer {
	l.datamaps.Register(dm.OrPriority(datamap.SourcePriority), "source", func(target any, t *table.Table, _ datamap.Env) error {
		srcs, err := sourcesFromTable(t)
		if err != nil {
			return err
		}
		target.(*ImageLayer).AddSource(srcs...)
		return nil
	})
	return l
}

func (l *ImageLayer) Clone() Layer {
	c := &ImageLayer{Base: l.cloneBase(), sources: cloneSources(l.sources)}
	if l.Opacity != nil {
		v := *l.Opacity
		c.Opacity = &v
	}
	return c
}

func (l *ImageLayer) Wire(env WireEnv) (map[string]any, error) {
	out := l.wire(TypeImage)
	src, err := wireSources(l.sources, env, true)
	if err != nil {
		return nil, err
	}
	out["source"] = src
	if l.Opacity != nil {
		out["opacity"] = *l.Opacity
	}
	return out, nil
}
