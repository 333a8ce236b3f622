package mapper

import (
	"fmt"

	"github.com/agentic-research/ngstate/internal/annotation"
	"github.com/agentic-research/ngstate/internal/table"
)

// PointMapper renders one point per row.
type PointMapper struct {
	PointColumn string
	Options
}

func (m *PointMapper) Name() string { return "point mapper" }

func (m *PointMapper) Render(t *table.Table, ctx Context) (*Result, error) {
	p := &pipeline{
		name:     m.Name(),
		opts:     m.Options,
		geometry: []string{m.PointColumn},
		build: func(pts [][]float64, _ table.Row) (annotation.Record, bool, error) {
			return &annotation.Point{Point: pts[0]}, true, nil
		},
	}
	return p.render(t, ctx)
}

// LineMapper renders a line from PointColumnA to PointColumnB per row.
type LineMapper struct {
	PointColumnA string
	PointColumnB string
	Options
}

func (m *LineMapper) Name() string { return "line mapper" }

func (m *LineMapper) Render(t *table.Table, ctx Context) (*Result, error) {
	p := &pipeline{
		name:     m.Name(),
		opts:     m.Options,
		geometry: []string{m.PointColumnA, m.PointColumnB},
		build: func(pts [][]float64, _ table.Row) (annotation.Record, bool, error) {
			return &annotation.Line{A: pts[0], B: pts[1]}, true, nil
		},
	}
	return p.render(t, ctx)
}

// BoundingBoxMapper renders an axis-aligned box per row.
type BoundingBoxMapper struct {
	PointColumnA string
	PointColumnB string
	Options
}

func (m *BoundingBoxMapper) Name() string { return "bounding box mapper" }

func (m *BoundingBoxMapper) Render(t *table.Table, ctx Context) (*Result, error) {
	p := &pipeline{
		name:     m.Name(),
		opts:     m.Options,
		geometry: []string{m.PointColumnA, m.PointColumnB},
		build: func(pts [][]float64, _ table.Row) (annotation.Record, bool, error) {
			return &annotation.BoundingBox{A: pts[0], B: pts[1]}, true, nil
		},
	}
	return p.render(t, ctx)
}

// SphereMapper renders an ellipsoid per row from a center and a radius.
// A scalar radius r becomes radii [r, r, r*ZMultiplier]; a vector radius is
// used as is. Radii are in the same units as the center.
type SphereMapper struct {
	CenterColumn string
	RadiusColumn string
	// ZMultiplier compensates for anisotropic voxels. Zero means 1.
	ZMultiplier float64
	Options
}

func (m *SphereMapper) Name() string { return "sphere mapper" }

func (m *SphereMapper) Render(t *table.Table, ctx Context) (*Result, error) {
	zm := m.ZMultiplier
	if zm == 0 {
		zm = 1
	}
	p := &pipeline{
		name:     m.Name(),
		opts:     m.Options,
		geometry: []string{m.CenterColumn},
		required: []string{m.RadiusColumn},
		build: func(pts [][]float64, row table.Row) (annotation.Record, bool, error) {
			radii, err := sphereRadii(row[m.RadiusColumn], len(pts[0]), zm)
			if err != nil {
				return nil, false, err
			}
			return &annotation.Ellipsoid{Center: pts[0], Radii: radii}, true, nil
		},
	}
	return p.render(t, ctx)
}

func sphereRadii(v any, dim int, zm float64) ([]float64, error) {
	if table.IsList(v) {
		vec, _, ok := table.Vector(v)
		if !ok || len(vec) != dim {
			return nil, fmt.Errorf("radius vector %v does not match %d dimensions", v, dim)
		}
		return vec, nil
	}
	r, ok := table.Float(v)
	if !ok {
		return nil, fmt.Errorf("radius %v is not a number", v)
	}
	radii := make([]float64, dim)
	for i := range radii {
		radii[i] = r
	}
	if dim > 2 {
		radii[2] = r * zm
	}
	return radii, nil
}
