package layer

import (
	"fmt"
	"slices"

	"github.com/agentic-research/ngstate/internal/annotation"
	"github.com/agentic-research/ngstate/internal/color"
	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/datamap"
	"github.com/agentic-research/ngstate/internal/mapper"
	"github.com/agentic-research/ngstate/internal/table"
)

// LocalAnnotationSource is the source of layers whose annotations live in
// the state itself.
const LocalAnnotationSource = "local://annotations"

// AnnotationLayer holds annotation records, either literal or produced by
// mappers, plus the tag vocabulary they are packed against.
type AnnotationLayer struct {
	Base
	// Source points at a remote annotation source. Nil keeps annotations
	// local.
	Source *Source
	Color  string

	LinkedSegmentation   string
	FilterBySegmentation bool
	// SwapVisibleSegmentsOnMove is omitted from the wire when nil.
	SwapVisibleSegmentsOnMove *bool

	// BindTags generates key bindings for the tag tools.
	BindTags bool
	// BindingKeys overrides the default key alphabet.
	BindingKeys []string
	// AutoTags extends the vocabulary with tags found by mappers. Otherwise
	// unknown tags are ignored when packing.
	AutoTags bool

	vocab    *annotation.Vocabulary
	records  []annotation.Record
	position []float64
	posRes   []float64
}

// NewAnnotationLayer returns an annotation layer with the given tag
// vocabulary. More than annotation.MaxTags tags fail.
func NewAnnotationLayer(name string, tags []string) (*AnnotationLayer, error) {
	vocab, err := annotation.NewVocabulary(tags)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	return &AnnotationLayer{Base: newBase(name), vocab: vocab, BindTags: true}, nil
}

func (l *AnnotationLayer) Type() string { return TypeAnnotation }

func (l *AnnotationLayer) Sources() []Source {
	if l.Source == nil {
		return nil
	}
	return []Source{*l.Source}
}

// Tags returns the layer's tag vocabulary.
func (l *AnnotationLayer) Tags() []string { return l.vocab.Tags() }

// Annotations returns the layer's records.
func (l *AnnotationLayer) Annotations() []annotation.Record { return l.records }

// AddAnnotations appends literal records. Records without an id get one;
// records without a resolution take the layer's.
func (l *AnnotationLayer) AddAnnotations(records ...annotation.Record) error {
	var tags []string
	added := make([]annotation.Record, 0, len(records))
	for _, r := range records {
		r = r.Clone()
		annotation.EnsureID(r)
		if b := r.Common(); b.Resolution == nil {
			b.Resolution = slices.Clone(l.Resolution)
		}
		tags = append(tags, r.Common().Tags...)
		added = append(added, r)
	}
	if err := l.extendTags(tags); err != nil {
		return err
	}
	l.records = append(l.records, added...)
	return nil
}

// AddMapped renders m against t and appends the result. On error the layer
// is left unchanged.
func (l *AnnotationLayer) AddMapped(m mapper.AnnotationMapper, t *table.Table, ctx mapper.Context) error {
	if ctx.DataResolution == nil {
		ctx.DataResolution = l.Resolution
	}
	res, err := m.Render(t, ctx)
	if err != nil {
		return err
	}
	if err := l.extendTags(res.Tags); err != nil {
		return err
	}
	l.records = append(l.records, res.Annotations...)
	if res.Position != nil && l.position == nil {
		l.position = res.Position
		l.posRes = res.PositionResolution
	}
	return nil
}

// AddMappedData defers m until its table arrives.
func (l *AnnotationLayer) AddMappedData(m mapper.AnnotationMapper, dm datamap.DataMap) *AnnotationLayer {
	l.datamaps.Register(dm, "annotations ("+m.Name()+")", func(target any, t *table.Table, env datamap.Env) error {
		return target.(*AnnotationLayer).AddMapped(m, t, mapper.Context{ViewerResolution: env.ViewerResolution})
	})
	return l
}

func (l *AnnotationLayer) extendTags(tags []string) error {
	if !l.AutoTags || len(tags) == 0 {
		return nil
	}
	var fresh []string
	for _, t := range tags {
		if !slices.Contains(l.vocab.Tags(), t) && !slices.Contains(fresh, t) {
			fresh = append(fresh, t)
		}
	}
	slices.Sort(fresh)
	next := l.vocab.Clone()
	if err := next.Extend(fresh); err != nil {
		return fmt.Errorf("layer %q: %w", l.name, err)
	}
	l.vocab = next
	return nil
}

// Position returns the suggested viewer position in viewer units, if a
// mapper asked for one.
func (l *AnnotationLayer) Position(viewerResolution []float64) ([]float64, error) {
	if l.position == nil {
		return nil, nil
	}
	if l.posRes == nil || len(viewerResolution) == 0 {
		return slices.Clone(l.position), nil
	}
	f, err := coords.ScaleFactor(l.posRes, viewerResolution)
	if err != nil {
		return nil, err
	}
	return coords.Scale(l.position, f)
}

func (l *AnnotationLayer) Clone() Layer {
	c := *l
	c.Base = l.cloneBase()
	if l.Source != nil {
		s := l.Source.Clone()
		c.Source = &s
	}
	if l.SwapVisibleSegmentsOnMove != nil {
		v := *l.SwapVisibleSegmentsOnMove
		c.SwapVisibleSegmentsOnMove = &v
	}
	c.BindingKeys = slices.Clone(l.BindingKeys)
	c.vocab = l.vocab.Clone()
	c.records = annotation.CloneAll(l.records)
	c.position = slices.Clone(l.position)
	c.posRes = slices.Clone(l.posRes)
	return &c
}

func (l *AnnotationLayer) Wire(env WireEnv) (map[string]any, error) {
	out := l.wire(TypeAnnotation)

	if l.Source != nil {
		src, err := l.Source.Wire(env.rewrite(l.Source.URL, false))
		if err != nil {
			return nil, err
		}
		out["source"] = src
	} else if env.Space.IsSet() {
		out["source"] = map[string]any{
			"url":       LocalAnnotationSource,
			"transform": map[string]any{"outputDimensions": env.Space.Dimensions()},
		}
	} else {
		out["source"] = LocalAnnotationSource
	}

	annos, err := annotation.EncodeAll(l.records, l.vocab, env.Space.Resolution)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", l.name, err)
	}
	out["annotations"] = annos

	if l.Color != "" {
		c, err := color.Parse(l.Color)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.name, err)
		}
		out["annotationColor"] = c
	}
	if l.vocab.Len() > 0 {
		out["annotationProperties"] = l.vocab.Properties()
		if l.BindTags {
			b, err := l.vocab.Bindings(l.BindingKeys)
			if err != nil {
				return nil, fmt.Errorf("layer %q: %w", l.name, err)
			}
			out["toolBindings"] = b
		}
	}
	if l.LinkedSegmentation != "" {
		out["linkedSegmentationLayer"] = map[string]any{"segments": l.LinkedSegmentation}
		if l.FilterBySegmentation {
			out["filterBySegmentation"] = []any{"segments"}
		}
	}
	if l.SwapVisibleSegmentsOnMove != nil {
		out["swapVisibleSegmentsOnMove"] = *l.SwapVisibleSegmentsOnMove
	}
	return out, nil
}
