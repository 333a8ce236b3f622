// Package ingest loads tables from files and builds viewer states from
// declarative specs.
package ingest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/agentic-research/ngstate/api"
	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/datamap"
	"github.com/agentic-research/ngstate/internal/layer"
	"github.com/agentic-research/ngstate/internal/mapper"
	"github.com/agentic-research/ngstate/internal/sourceinfo"
	"github.com/agentic-research/ngstate/internal/table"
	"github.com/agentic-research/ngstate/internal/viewer"
)

// Engine turns state specs into viewer states.
type Engine struct {
	// Sites replaces the built-in site table when set.
	Sites *viewer.Sites
	// Inferrer backs coordinate inference; nil disables it.
	Inferrer sourceinfo.Inferrer
}

func NewEngine(sites *viewer.Sites, inferrer sourceinfo.Inferrer) *Engine {
	return &Engine{Sites: sites, Inferrer: inferrer}
}

// Build creates a state template. Every mapper in the spec is registered
// as a DataMap on its layer, so the result is pending until mapped.
func (e *Engine) Build(spec *api.StateSpec) (*viewer.State, error) {
	var space coords.Space
	if d := spec.Dimensions; d != nil {
		var err error
		if space, err = coords.New(d.Resolution, d.Units, d.Names); err != nil {
			return nil, fmt.Errorf("dimensions: %w", err)
		}
	}

	s := viewer.New(space)
	if e.Sites != nil {
		s.Sites = e.Sites
	}
	s.Inferrer = e.Inferrer
	s.Site = spec.Site
	s.BaseURL = spec.BaseURL
	s.Position = spec.Position
	if spec.Layout != "" {
		s.Layout = viewer.Layout(spec.Layout)
	}
	if spec.CrossSectionScale != 0 {
		s.ScaleImagery = spec.CrossSectionScale
	}
	if spec.ProjectionScale != 0 {
		s.Scale3D = spec.ProjectionScale
	}
	s.ShowSlices = spec.ShowSlices
	if spec.InferCoordinates != nil {
		s.InferCoordinates = *spec.InferCoordinates
	}
	if spec.SelectedLayer != "" {
		s.Selected = &viewer.SelectedLayer{Name: spec.SelectedLayer, Visible: true}
	}

	for _, ls := range spec.Layers {
		l, err := buildLayer(ls)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", ls.Name, err)
		}
		if err := s.AddLayer(l); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Render builds the spec and maps data onto it.
func (e *Engine) Render(spec *api.StateSpec, data map[string]*table.Table) (*viewer.State, error) {
	tmpl, err := e.Build(spec)
	if err != nil {
		return nil, err
	}
	if err := tmpl.MapInPlace(data); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// RenderFiles loads inputs and renders the spec with them.
func (e *Engine) RenderFiles(ctx context.Context, spec *api.StateSpec, inputs []Input) (*viewer.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := LoadTables(inputs)
	if err != nil {
		return nil, err
	}
	return e.Render(spec, data)
}

func buildLayer(ls api.LayerSpec) (layer.Layer, error) {
	srcs := make([]layer.Source, len(ls.Sources))
	for i, s := range ls.Sources {
		srcs[i] = layer.Source{
			URL:                     s.URL,
			Resolution:              s.Resolution,
			Subsources:              s.Subsources,
			EnableDefaultSubsources: s.EnableDefaultSubsources,
		}
	}

	var (
		l    layer.Layer
		base *layer.Base
	)
	switch ls.Type {
	case api.LayerImage:
		img := layer.NewImageLayer(ls.Name).AddSource(srcs...)
		if ls.SourceData != "" {
			img.AddSourceData(datamap.New(ls.SourceData).WithPriority(datamap.SourcePriority))
		}
		img.Opacity = ls.Opacity
		l, base = img, &img.Base
	case api.LayerSegmentation:
		seg, err := buildSegmentation(ls, srcs)
		if err != nil {
			return nil, err
		}
		l, base = seg, &seg.Base
	case api.LayerAnnotation:
		al, err := buildAnnotation(ls)
		if err != nil {
			return nil, err
		}
		l, base = al, &al.Base
	default:
		return nil, fmt.Errorf("unknown layer type %q", ls.Type)
	}

	if ls.Visible != nil {
		base.Visible = *ls.Visible
	}
	base.Archived = ls.Archived
	base.Resolution = ls.Resolution
	base.Shader = ls.Shader
	return l, nil
}

func buildSegmentation(ls api.LayerSpec, srcs []layer.Source) (*layer.SegmentationLayer, error) {
	seg := layer.NewSegmentationLayer(ls.Name).AddSource(srcs...)
	if ls.SourceData != "" {
		seg.AddSourceData(datamap.New(ls.SourceData).WithPriority(datamap.SourcePriority))
	}
	seg.AddSegments(ls.Segments, true)
	seg.AddSegments(ls.HiddenSegments, false)
	if len(ls.SegmentColors) > 0 {
		colors := make(map[uint64]string, len(ls.SegmentColors))
		for k, c := range ls.SegmentColors {
			id, err := strconv.ParseUint(k, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("segment color key %q: %w", k, err)
			}
			colors[id] = c
		}
		if err := seg.AddSegmentColors(colors); err != nil {
			return nil, err
		}
	}
	if a := ls.Alpha; a != nil {
		if a.Selected != nil {
			seg.SelectedAlpha = *a.Selected
		}
		if a.NotSelected != nil {
			seg.NotSelectedAlpha = *a.NotSelected
		}
		if a.Object != nil {
			seg.ObjectAlpha = *a.Object
		}
	}
	seg.Timestamp = ls.Timestamp

	for _, m := range ls.Mappers {
		dm := dataMap(m, datamap.SourcePriority)
		switch m.Kind {
		case api.MapperSelection:
			seg.AddSelectionData(&mapper.SelectionMapper{
				DataColumns:   m.Columns,
				FixedIDs:      m.FixedIDs,
				FixedIDColors: m.FixedColors,
				ColorColumn:   m.ColorColumn,
			}, dm)
		case api.MapperSplitPoint:
			seg.AddSplitPointData(&mapper.SplitPointMapper{
				IDColumn:         m.ID,
				PointColumn:      m.Point,
				TeamColumn:       m.Team,
				SupervoxelColumn: m.Supervoxel,
				Focus:            m.Focus,
				SplitPositions:   m.SplitPositions,
				DataResolution:   m.DataResolution,
			}, dm)
		default:
			return nil, fmt.Errorf("mapper kind %q not allowed on segmentation layers", m.Kind)
		}
	}
	return seg, nil
}

func buildAnnotation(ls api.LayerSpec) (*layer.AnnotationLayer, error) {
	al, err := layer.NewAnnotationLayer(ls.Name, ls.Tags)
	if err != nil {
		return nil, err
	}
	al.AutoTags = ls.AutoTags
	al.BindingKeys = ls.BindingKeys
	al.Color = ls.Color
	al.LinkedSegmentation = ls.LinkedSegmentation
	al.FilterBySegmentation = ls.FilterBySegmentation
	if ls.RemoteSource != "" {
		al.Source = &layer.Source{URL: ls.RemoteSource}
	}
	for _, m := range ls.Mappers {
		am, err := annotationMapper(m)
		if err != nil {
			return nil, err
		}
		al.AddMappedData(am, dataMap(m, datamap.DefaultPriority))
	}
	return al, nil
}

func annotationMapper(m api.MapperSpec) (mapper.AnnotationMapper, error) {
	opts := mapper.Options{
		IDColumn:             m.ID,
		SegmentColumn:        m.Segment,
		DescriptionColumn:    m.Description,
		TagColumn:            m.Tag,
		TagBoolColumns:       m.TagBools,
		GroupColumn:          m.Group,
		Multipoint:           m.Multipoint,
		SplitPositions:       m.SplitPositions,
		MixedLayout:          m.MixedLayout,
		SetPosition:          m.SetPosition,
		GatherLinkedSegments: m.GatherLinkedSegments,
		ShareLinkedSegments:  m.ShareLinkedSegments,
		CollapseGroups:       m.CollapseGroups,
		DataResolution:       m.DataResolution,
	}
	switch m.Kind {
	case api.MapperPoint:
		return &mapper.PointMapper{PointColumn: m.Point, Options: opts}, nil
	case api.MapperLine:
		return &mapper.LineMapper{PointColumnA: m.PointA, PointColumnB: m.PointB, Options: opts}, nil
	case api.MapperBoundingBox:
		return &mapper.BoundingBoxMapper{PointColumnA: m.PointA, PointColumnB: m.PointB, Options: opts}, nil
	case api.MapperSphere:
		return &mapper.SphereMapper{CenterColumn: m.Center, RadiusColumn: m.Radius, ZMultiplier: m.ZMultiplier, Options: opts}, nil
	}
	return nil, fmt.Errorf("mapper kind %q not allowed on annotation layers", m.Kind)
}

func dataMap(m api.MapperSpec, defaultPriority int) datamap.DataMap {
	p := m.Priority
	if p == 0 {
		p = defaultPriority
	}
	return datamap.New(m.Data).WithPriority(p)
}
