package layer

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/agentic-research/ngstate/internal/annotation"
	"github.com/agentic-research/ngstate/internal/color"
	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/datamap"
	"github.com/agentic-research/ngstate/internal/mapper"
	"github.com/agentic-research/ngstate/internal/table"
	"gonum.org/v1/gonum/stat"
)

// SegmentationLayer displays a segmentation volume and a set of selected
// segments.
type SegmentationLayer struct {
	Base
	sources []Source

	visible *roaring64.Bitmap
	hidden  *roaring64.Bitmap
	colors  map[uint64]string

	SelectedAlpha    float64
	NotSelectedAlpha float64
	ObjectAlpha      float64
	MeshSilhouette   float64
	HideSegmentZero  bool
	// Timestamp pins a graphene segmentation to a point in time; zero
	// leaves it unset.
	Timestamp int64

	splits []*mapper.SplitPoints
}

// NewSegmentationLayer returns a segmentation layer with the default alphas.
func NewSegmentationLayer(name string) *SegmentationLayer {
	return &SegmentationLayer{
		Base:             newBase(name),
		visible:          roaring64.New(),
		hidden:           roaring64.New(),
		colors:           map[uint64]string{},
		SelectedAlpha:    0.2,
		NotSelectedAlpha: 0,
		ObjectAlpha:      0.9,
		HideSegmentZero:  true,
	}
}

func (l *SegmentationLayer) Type() string { return TypeSegmentation }

func (l *SegmentationLayer) Sources() []Source { return l.sources }

// AddSource appends sources.
func (l *SegmentationLayer) AddSource(srcs ...Source) *SegmentationLayer {
	l.sources = append(l.sources, srcs...)
	return l
}

// AddSourceData defers sources to a table with a url column. dm resolves
// at SourcePriority unless its priority was set with WithPriority.
func (l *SegmentationLayer) AddSourceData(dm datamap.DataMap) *SegmentationLayer {
	l.datamaps.Register(dm.OrPriority(datamap.SourcePriority), "source", func(target any, t *table.Table, _ datamap.Env) error {
		srcs, err := sourcesFromTable(t)
		if err != nil {
			return err
		}
		target.(*SegmentationLayer).AddSource(srcs...)
		return nil
	})
	return l
}

// AddSegments adds ids to the selection. Hidden segments stay in the set
// but are not displayed.
func (l *SegmentationLayer) AddSegments(ids []uint64, visible bool) *SegmentationLayer {
	for _, id := range ids {
		if visible {
			l.hidden.Remove(id)
			l.visible.Add(id)
		} else if !l.visible.Contains(id) {
			l.hidden.Add(id)
		}
	}
	return l
}

// Segments returns the visible segment ids in ascending order.
func (l *SegmentationLayer) Segments() []uint64 {
	return l.visible.ToArray()
}

// AddSegmentColors sets per-segment colors. Colors are normalised to
// #rrggbb.
func (l *SegmentationLayer) AddSegmentColors(colors map[uint64]string) error {
	parsed := make(map[uint64]string, len(colors))
	for id, c := range colors {
		hex, err := color.Parse(c)
		if err != nil {
			return fmt.Errorf("segment %d: %w", id, err)
		}
		parsed[id] = hex
	}
	maps.Copy(l.colors, parsed)
	return nil
}

// AddSelection renders m against t and adds the result as visible segments.
func (l *SegmentationLayer) AddSelection(m *mapper.SelectionMapper, t *table.Table) error {
	sel, err := m.Render(t)
	if err != nil {
		return err
	}
	l.AddSegments(sel.IDs, true)
	maps.Copy(l.colors, sel.Colors)
	return nil
}

// AddSelectionData defers a selection until its table arrives. Segment
// lists resolve at SourcePriority, ahead of annotation rows, unless dm was
// given a priority with WithPriority. A pinned priority is kept as is, so
// WithPriority(datamap.DefaultPriority) resolves alongside annotations.
func (l *SegmentationLayer) AddSelectionData(m *mapper.SelectionMapper, dm datamap.DataMap) *SegmentationLayer {
	l.datamaps.Register(dm.OrPriority(datamap.SourcePriority), "segments", func(target any, t *table.Table, _ datamap.Env) error {
		return target.(*SegmentationLayer).AddSelection(m, t)
	})
	return l
}

// AddSplitPoints renders split points for one object. The object is added
// to the visible segments.
func (l *SegmentationLayer) AddSplitPoints(m *mapper.SplitPointMapper, t *table.Table, ctx mapper.Context) error {
	if ctx.DataResolution == nil {
		ctx.DataResolution = l.Resolution
	}
	sp, err := m.Render(t, ctx)
	if err != nil {
		return err
	}
	l.splits = append(l.splits, sp)
	l.AddSegments([]uint64{sp.ObjectID}, true)
	return nil
}

// AddSplitPointData defers split points until their table arrives, at
// SourcePriority unless dm was pinned with WithPriority.
func (l *SegmentationLayer) AddSplitPointData(m *mapper.SplitPointMapper, dm datamap.DataMap) *SegmentationLayer {
	l.datamaps.Register(dm.OrPriority(datamap.SourcePriority), "split points", func(target any, t *table.Table, env datamap.Env) error {
		return target.(*SegmentationLayer).AddSplitPoints(m, t, mapper.Context{ViewerResolution: env.ViewerResolution})
	})
	return l
}

// Focus reports the center of the split points of the last focused split,
// in viewer units.
func (l *SegmentationLayer) Focus(viewerResolution []float64) ([]float64, bool, error) {
	for i := len(l.splits) - 1; i >= 0; i-- {
		sp := l.splits[i]
		if !sp.Focus {
			continue
		}
		pts, err := splitPointsInViewer(sp, viewerResolution)
		if err != nil {
			return nil, false, err
		}
		all := append(slices.Clone(pts[0]), pts[1]...)
		if len(all) == 0 {
			return nil, true, nil
		}
		center := make([]float64, len(all[0]))
		axis := make([]float64, len(all))
		for d := range center {
			for k, p := range all {
				axis[k] = p[d]
			}
			center[d] = stat.Mean(axis, nil)
		}
		return center, true, nil
	}
	return nil, false, nil
}

func splitPointsInViewer(sp *mapper.SplitPoints, viewerResolution []float64) ([2][][]float64, error) {
	out := [2][][]float64{sp.Red.Points, sp.Blue.Points}
	if sp.Resolution == nil || len(viewerResolution) == 0 {
		return out, nil
	}
	f, err := coords.ScaleFactor(sp.Resolution, viewerResolution)
	if err != nil {
		return out, err
	}
	for team := range out {
		scaled := make([][]float64, len(out[team]))
		for i, p := range out[team] {
			if scaled[i], err = coords.Scale(p, f); err != nil {
				return out, err
			}
		}
		out[team] = scaled
	}
	return out, nil
}

func (l *SegmentationLayer) Clone() Layer {
	c := *l
	c.Base = l.cloneBase()
	c.sources = cloneSources(l.sources)
	c.visible = l.visible.Clone()
	c.hidden = l.hidden.Clone()
	c.colors = maps.Clone(l.colors)
	c.splits = make([]*mapper.SplitPoints, len(l.splits))
	for i, sp := range l.splits {
		cp := *sp
		cp.Red.Points = slices.Clone(sp.Red.Points)
		cp.Blue.Points = slices.Clone(sp.Blue.Points)
		cp.Red.Supervoxels = slices.Clone(sp.Red.Supervoxels)
		cp.Blue.Supervoxels = slices.Clone(sp.Blue.Supervoxels)
		c.splits[i] = &cp
	}
	return &c
}

func (l *SegmentationLayer) Wire(env WireEnv) (map[string]any, error) {
	out := l.wire(TypeSegmentation)
	src, err := wireSources(l.sources, env, false)
	if err != nil {
		return nil, err
	}
	out["source"] = src

	segs := make([]any, 0, l.visible.GetCardinality()+l.hidden.GetCardinality())
	all := roaring64.Or(l.visible, l.hidden)
	it := all.Iterator()
	for it.HasNext() {
		id := it.Next()
		s := strconv.FormatUint(id, 10)
		if l.hidden.Contains(id) {
			s = "!" + s
		}
		segs = append(segs, s)
	}
	if len(segs) > 0 {
		out["segments"] = segs
	}
	if len(l.colors) > 0 {
		colors := make(map[string]any, len(l.colors))
		for id, c := range l.colors {
			colors[strconv.FormatUint(id, 10)] = c
		}
		out["segmentColors"] = colors
	}

	out["selectedAlpha"] = l.SelectedAlpha
	out["notSelectedAlpha"] = l.NotSelectedAlpha
	out["objectAlpha"] = l.ObjectAlpha
	if l.MeshSilhouette != 0 {
		out["meshSilhouetteRendering"] = l.MeshSilhouette
	}
	if !l.HideSegmentZero {
		out["hideSegmentZero"] = false
	}
	if l.Timestamp != 0 {
		out["timestamp"] = strconv.FormatInt(l.Timestamp, 10)
	}

	if len(l.splits) > 0 {
		markers, err := l.wireSplits(env.Space.Resolution)
		if err != nil {
			return nil, err
		}
		out["graphOperationMarker"] = markers
		out["tab"] = "graph"
	}
	return out, nil
}

// wireSplits renders the red and blue marker holders. Each point carries
// its supervoxel as description and links to [supervoxel, object].
func (l *SegmentationLayer) wireSplits(viewerResolution []float64) ([]any, error) {
	var red, blue []any
	for s, sp := range l.splits {
		pts, err := splitPointsInViewer(sp, viewerResolution)
		if err != nil {
			return nil, err
		}
		for team, svs := range [2][]uint64{sp.Red.Supervoxels, sp.Blue.Supervoxels} {
			for i, p := range pts[team] {
				rec := &annotation.Point{
					Base: annotation.Base{
						ID:          fmt.Sprintf("split%d_%s_%d", s, [2]string{"red", "blue"}[team], i),
						Description: strconv.FormatUint(svs[i], 10),
						Segments:    []uint64{svs[i], sp.ObjectID},
					},
					Point: p,
				}
				enc := annotation.Encode(rec, nil)
				if team == 0 {
					red = append(red, enc)
				} else {
					blue = append(blue, enc)
				}
			}
		}
	}
	return []any{
		map[string]any{"annotations": orEmpty(red), "tags": []any{}},
		map[string]any{"annotations": orEmpty(blue), "tags": []any{}},
	}, nil
}

func orEmpty(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
