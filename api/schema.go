// Package api defines the declarative state specification: a YAML or JSON
// document describing the viewer layout, its layers and how tables map onto
// them.
package api

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Layer types.
const (
	LayerImage        = "image"
	LayerSegmentation = "segmentation"
	LayerAnnotation   = "annotation"
)

// Mapper kinds.
const (
	MapperPoint       = "point"
	MapperLine        = "line"
	MapperBoundingBox = "bounding_box"
	MapperSphere      = "sphere"
	MapperSelection   = "selection"
	MapperSplitPoint  = "split_point"
)

// ErrInvalidSpec is wrapped by every validation failure.
var ErrInvalidSpec = errors.New("invalid state spec")

// StateSpec is the root of a state specification.
type StateSpec struct {
	// Site names the deployment (default "spelunker").
	Site string `yaml:"site,omitempty" json:"site,omitempty"`
	// BaseURL overrides the site URL.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	// Dimensions of the viewer space. Omitted dimensions are inferred from
	// layer sources when InferCoordinates is on.
	Dimensions *DimensionsSpec `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	// Position in viewer voxels.
	Position []float64 `yaml:"position,omitempty" json:"position,omitempty"`
	Layout   string    `yaml:"layout,omitempty" json:"layout,omitempty"`
	// CrossSectionScale is the 2D zoom (default 1).
	CrossSectionScale float64 `yaml:"cross_section_scale,omitempty" json:"cross_section_scale,omitempty"`
	// ProjectionScale is the 3D zoom (default 50000).
	ProjectionScale float64 `yaml:"projection_scale,omitempty" json:"projection_scale,omitempty"`
	ShowSlices      bool    `yaml:"show_slices,omitempty" json:"show_slices,omitempty"`
	// SelectedLayer opens the side panel on the named layer.
	SelectedLayer string `yaml:"selected_layer,omitempty" json:"selected_layer,omitempty"`
	// InferCoordinates fills missing dimensions and position from source
	// metadata (default true).
	InferCoordinates *bool `yaml:"infer_coordinates,omitempty" json:"infer_coordinates,omitempty"`
	// Layers in display order.
	Layers []LayerSpec `yaml:"layers" json:"layers"`
}

// DimensionsSpec describes the viewer coordinate space.
type DimensionsSpec struct {
	Resolution []float64 `yaml:"resolution" json:"resolution"`
	// Units holds one unit for every axis or a single unit for all (default nm).
	Units []string `yaml:"units,omitempty" json:"units,omitempty"`
	// Names defaults to x, y, z.
	Names []string `yaml:"names,omitempty" json:"names,omitempty"`
}

// LayerSpec describes one layer. Fields that do not apply to Type are
// ignored.
type LayerSpec struct {
	Name string `yaml:"name" json:"name"`
	// Type is image, segmentation or annotation.
	Type       string    `yaml:"type" json:"type"`
	Visible    *bool     `yaml:"visible,omitempty" json:"visible,omitempty"`
	Archived   bool      `yaml:"archived,omitempty" json:"archived,omitempty"`
	Resolution []float64 `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	Shader     string    `yaml:"shader,omitempty" json:"shader,omitempty"`

	Sources []SourceSpec `yaml:"sources,omitempty" json:"sources,omitempty"`
	// SourceData reads further sources from a table with url and resolution
	// columns.
	SourceData string `yaml:"source_data,omitempty" json:"source_data,omitempty"`

	// Image.
	Opacity *float64 `yaml:"opacity,omitempty" json:"opacity,omitempty"`

	// Segmentation.
	Segments       []uint64          `yaml:"segments,omitempty" json:"segments,omitempty"`
	HiddenSegments []uint64          `yaml:"hidden_segments,omitempty" json:"hidden_segments,omitempty"`
	SegmentColors  map[string]string `yaml:"segment_colors,omitempty" json:"segment_colors,omitempty"`
	Alpha          *AlphaSpec        `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	Timestamp      int64             `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`

	// Annotation.
	Tags                 []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	AutoTags             bool     `yaml:"auto_tags,omitempty" json:"auto_tags,omitempty"`
	BindingKeys          []string `yaml:"binding_keys,omitempty" json:"binding_keys,omitempty"`
	Color                string   `yaml:"color,omitempty" json:"color,omitempty"`
	LinkedSegmentation   string   `yaml:"linked_segmentation,omitempty" json:"linked_segmentation,omitempty"`
	FilterBySegmentation bool     `yaml:"filter_by_segmentation,omitempty" json:"filter_by_segmentation,omitempty"`
	// RemoteSource replaces the local annotation store.
	RemoteSource string `yaml:"remote_source,omitempty" json:"remote_source,omitempty"`

	// Mappers render tables into the layer. Annotation layers take the
	// geometry kinds; segmentation layers take selection and split_point.
	Mappers []MapperSpec `yaml:"mappers,omitempty" json:"mappers,omitempty"`
}

// AlphaSpec overrides segmentation transparency.
type AlphaSpec struct {
	Selected    *float64 `yaml:"selected,omitempty" json:"selected,omitempty"`
	NotSelected *float64 `yaml:"not_selected,omitempty" json:"not_selected,omitempty"`
	Object      *float64 `yaml:"object,omitempty" json:"object,omitempty"`
}

// SourceSpec is one layer source.
type SourceSpec struct {
	URL        string          `yaml:"url" json:"url"`
	Resolution []float64       `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	Subsources map[string]bool `yaml:"subsources,omitempty" json:"subsources,omitempty"`
	// EnableDefaultSubsources defaults to true.
	EnableDefaultSubsources *bool `yaml:"enable_default_subsources,omitempty" json:"enable_default_subsources,omitempty"`
}

// MapperSpec binds a table to a mapper.
type MapperSpec struct {
	Kind string `yaml:"kind" json:"kind"`
	// Data is the key of the table this mapper reads.
	Data string `yaml:"data" json:"data"`
	// Priority orders resolution; lower runs first. Zero means the default.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`

	// Geometry columns.
	Point       string  `yaml:"point,omitempty" json:"point,omitempty"`
	PointA      string  `yaml:"point_a,omitempty" json:"point_a,omitempty"`
	PointB      string  `yaml:"point_b,omitempty" json:"point_b,omitempty"`
	Center      string  `yaml:"center,omitempty" json:"center,omitempty"`
	Radius      string  `yaml:"radius,omitempty" json:"radius,omitempty"`
	ZMultiplier float64 `yaml:"z_multiplier,omitempty" json:"z_multiplier,omitempty"`

	// Attribute columns.
	ID          string   `yaml:"id,omitempty" json:"id,omitempty"`
	Segment     string   `yaml:"segment,omitempty" json:"segment,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tag         string   `yaml:"tag,omitempty" json:"tag,omitempty"`
	TagBools    []string `yaml:"tag_bools,omitempty" json:"tag_bools,omitempty"`
	Group       string   `yaml:"group,omitempty" json:"group,omitempty"`

	Multipoint           bool      `yaml:"multipoint,omitempty" json:"multipoint,omitempty"`
	SplitPositions       *bool     `yaml:"split_positions,omitempty" json:"split_positions,omitempty"`
	MixedLayout          bool      `yaml:"mixed_layout,omitempty" json:"mixed_layout,omitempty"`
	SetPosition          bool      `yaml:"set_position,omitempty" json:"set_position,omitempty"`
	GatherLinkedSegments *bool     `yaml:"gather_linked_segments,omitempty" json:"gather_linked_segments,omitempty"`
	ShareLinkedSegments  bool      `yaml:"share_linked_segments,omitempty" json:"share_linked_segments,omitempty"`
	CollapseGroups       bool      `yaml:"collapse_groups,omitempty" json:"collapse_groups,omitempty"`
	DataResolution       []float64 `yaml:"data_resolution,omitempty" json:"data_resolution,omitempty"`

	// Selection.
	Columns     []string `yaml:"columns,omitempty" json:"columns,omitempty"`
	FixedIDs    []uint64 `yaml:"fixed_ids,omitempty" json:"fixed_ids,omitempty"`
	FixedColors []string `yaml:"fixed_colors,omitempty" json:"fixed_colors,omitempty"`
	ColorColumn string   `yaml:"color_column,omitempty" json:"color_column,omitempty"`

	// Split points.
	Team       string `yaml:"team,omitempty" json:"team,omitempty"`
	Supervoxel string `yaml:"supervoxel,omitempty" json:"supervoxel,omitempty"`
	Focus      bool   `yaml:"focus,omitempty" json:"focus,omitempty"`
}

// Load reads a spec file. JSON files parse as YAML.
func Load(path string) (*StateSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes, defaults and validates a spec document.
func Parse(data []byte) (*StateSpec, error) {
	var spec StateSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse spec: %w", err)
	}
	applyDefaults(&spec)
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func applyDefaults(spec *StateSpec) {
	if spec.CrossSectionScale == 0 {
		spec.CrossSectionScale = 1
	}
	if spec.ProjectionScale == 0 {
		spec.ProjectionScale = 50000
	}
	if spec.InferCoordinates == nil {
		t := true
		spec.InferCoordinates = &t
	}
}

// Validate checks structure: layer names, types and mapper kinds. Column
// presence is checked against data at mapping time.
func (s *StateSpec) Validate() error {
	seen := make(map[string]bool, len(s.Layers))
	for i, l := range s.Layers {
		if l.Name == "" {
			return fmt.Errorf("%w: layer %d has no name", ErrInvalidSpec, i)
		}
		if seen[l.Name] {
			return fmt.Errorf("%w: duplicate layer name %q", ErrInvalidSpec, l.Name)
		}
		seen[l.Name] = true
		if err := l.validate(); err != nil {
			return fmt.Errorf("%w: layer %q: %w", ErrInvalidSpec, l.Name, err)
		}
	}
	if s.SelectedLayer != "" && !seen[s.SelectedLayer] {
		return fmt.Errorf("%w: selected layer %q not found", ErrInvalidSpec, s.SelectedLayer)
	}
	if s.Dimensions != nil && len(s.Dimensions.Resolution) == 0 {
		return fmt.Errorf("%w: dimensions without resolution", ErrInvalidSpec)
	}
	return nil
}

var mapperKinds = map[string][]string{
	LayerImage:        nil,
	LayerSegmentation: {MapperSelection, MapperSplitPoint},
	LayerAnnotation:   {MapperPoint, MapperLine, MapperBoundingBox, MapperSphere},
}

func (l LayerSpec) validate() error {
	kinds, ok := mapperKinds[l.Type]
	if !ok {
		return fmt.Errorf("unknown layer type %q", l.Type)
	}
	for i, src := range l.Sources {
		if src.URL == "" {
			return fmt.Errorf("source %d has no url", i)
		}
	}
	for i, m := range l.Mappers {
		if !slices.Contains(kinds, m.Kind) {
			return fmt.Errorf("mapper %d: kind %q not allowed on %s layers", i, m.Kind, l.Type)
		}
		if err := m.validate(); err != nil {
			return fmt.Errorf("mapper %d: %w", i, err)
		}
	}
	return nil
}

func (m MapperSpec) validate() error {
	var need map[string]string
	switch m.Kind {
	case MapperPoint:
		need = map[string]string{"point": m.Point}
	case MapperLine, MapperBoundingBox:
		need = map[string]string{"point_a": m.PointA, "point_b": m.PointB}
	case MapperSphere:
		need = map[string]string{"center": m.Center, "radius": m.Radius}
	case MapperSelection:
		if len(m.Columns) == 0 && len(m.FixedIDs) == 0 {
			return errors.New("selection needs columns or fixed_ids")
		}
		if len(m.FixedColors) > 0 && len(m.FixedColors) != len(m.FixedIDs) {
			return errors.New("fixed_colors must match fixed_ids")
		}
	case MapperSplitPoint:
		need = map[string]string{"id": m.ID, "point": m.Point, "team": m.Team}
	}
	for _, field := range slices.Sorted(maps.Keys(need)) {
		if need[field] == "" {
			return fmt.Errorf("%s mapper needs %s", m.Kind, field)
		}
	}
	return nil
}
