// Package annotation defines the geometric annotation records a layer
// carries and their wire encoding.
package annotation

import (
	"slices"
	"strconv"
	"strings"

	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/google/uuid"
)

// Kind names an annotation variant as it appears on the wire.
type Kind string

const (
	KindPoint       Kind = "point"
	KindLine        Kind = "line"
	KindEllipsoid   Kind = "ellipsoid"
	KindBoundingBox Kind = "axis_aligned_bounding_box"
	KindCollection  Kind = "collection"
)

// Base carries the fields every variant shares.
type Base struct {
	ID          string
	Description string
	Segments    []uint64
	Tags        []string
	// Resolution is the resolution the coordinates were authored in. Nil
	// means they are already in viewer units.
	Resolution []float64
	// ParentID points at the collection the record belongs to, if any.
	ParentID string
}

// Record is one annotation. The set of implementations is closed.
type Record interface {
	Kind() Kind
	Common() *Base
	// Anchor is the point used to position the viewer on the record.
	Anchor() []float64
	// Clone returns a deep copy.
	Clone() Record

	points() [][]float64
	withPoints(pts [][]float64) Record
	geometry() map[string]any
}

// NewID returns a fresh opaque annotation id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EnsureID assigns an id to r if it has none.
func EnsureID(r Record) {
	if b := r.Common(); b.ID == "" {
		b.ID = NewID()
	}
}

func (b Base) clone() Base {
	c := b
	c.Segments = slices.Clone(b.Segments)
	c.Tags = slices.Clone(b.Tags)
	c.Resolution = slices.Clone(b.Resolution)
	return c
}

// Point is a single location.
type Point struct {
	Base
	Point []float64
}

func (p *Point) Kind() Kind          { return KindPoint }
func (p *Point) Common() *Base       { return &p.Base }
func (p *Point) Anchor() []float64   { return slices.Clone(p.Point) }
func (p *Point) points() [][]float64 { return [][]float64{p.Point} }

func (p *Point) Clone() Record {
	return &Point{Base: p.Base.clone(), Point: slices.Clone(p.Point)}
}

func (p *Point) withPoints(pts [][]float64) Record {
	return &Point{Base: p.Base.clone(), Point: pts[0]}
}

func (p *Point) geometry() map[string]any {
	return map[string]any{"point": floatsJSON(p.Point)}
}

// Line connects A and B.
type Line struct {
	Base
	A, B []float64
}

func (l *Line) Kind() Kind          { return KindLine }
func (l *Line) Common() *Base       { return &l.Base }
func (l *Line) Anchor() []float64   { return slices.Clone(l.A) }
func (l *Line) points() [][]float64 { return [][]float64{l.A, l.B} }

func (l *Line) Clone() Record {
	return &Line{Base: l.Base.clone(), A: slices.Clone(l.A), B: slices.Clone(l.B)}
}

func (l *Line) withPoints(pts [][]float64) Record {
	return &Line{Base: l.Base.clone(), A: pts[0], B: pts[1]}
}

func (l *Line) geometry() map[string]any {
	return map[string]any{"pointA": floatsJSON(l.A), "pointB": floatsJSON(l.B)}
}

// Ellipsoid is an axis-aligned ellipsoid; spheres are ellipsoids with equal
// radii in physical units.
type Ellipsoid struct {
	Base
	Center, Radii []float64
}

func (e *Ellipsoid) Kind() Kind          { return KindEllipsoid }
func (e *Ellipsoid) Common() *Base       { return &e.Base }
func (e *Ellipsoid) Anchor() []float64   { return slices.Clone(e.Center) }
func (e *Ellipsoid) points() [][]float64 { return [][]float64{e.Center, e.Radii} }

func (e *Ellipsoid) Clone() Record {
	return &Ellipsoid{Base: e.Base.clone(), Center: slices.Clone(e.Center), Radii: slices.Clone(e.Radii)}
}

func (e *Ellipsoid) withPoints(pts [][]float64) Record {
	return &Ellipsoid{Base: e.Base.clone(), Center: pts[0], Radii: pts[1]}
}

func (e *Ellipsoid) geometry() map[string]any {
	return map[string]any{"center": floatsJSON(e.Center), "radii": floatsJSON(e.Radii)}
}

// BoundingBox is an axis-aligned box with opposite corners A and B.
type BoundingBox struct {
	Base
	A, B []float64
}

func (bb *BoundingBox) Kind() Kind          { return KindBoundingBox }
func (bb *BoundingBox) Common() *Base       { return &bb.Base }
func (bb *BoundingBox) points() [][]float64 { return [][]float64{bb.A, bb.B} }

// Anchor is the box center.
func (bb *BoundingBox) Anchor() []float64 {
	out := make([]float64, len(bb.A))
	for i := range out {
		out[i] = (bb.A[i] + bb.B[i]) / 2
	}
	return out
}

func (bb *BoundingBox) Clone() Record {
	return &BoundingBox{Base: bb.Base.clone(), A: slices.Clone(bb.A), B: slices.Clone(bb.B)}
}

func (bb *BoundingBox) withPoints(pts [][]float64) Record {
	return &BoundingBox{Base: bb.Base.clone(), A: pts[0], B: pts[1]}
}

func (bb *BoundingBox) geometry() map[string]any {
	return map[string]any{"pointA": floatsJSON(bb.A), "pointB": floatsJSON(bb.B)}
}

// Collection groups member records. Source is the anchor of its first
// member.
type Collection struct {
	Base
	Source          []float64
	Entries         []string
	ChildrenVisible bool
}

func (c *Collection) Kind() Kind          { return KindCollection }
func (c *Collection) Common() *Base       { return &c.Base }
func (c *Collection) Anchor() []float64   { return slices.Clone(c.Source) }
func (c *Collection) points() [][]float64 { return [][]float64{c.Source} }

func (c *Collection) Clone() Record {
	return &Collection{
		Base:            c.Base.clone(),
		Source:          slices.Clone(c.Source),
		Entries:         slices.Clone(c.Entries),
		ChildrenVisible: c.ChildrenVisible,
	}
}

func (c *Collection) withPoints(pts [][]float64) Record {
	out := c.Clone().(*Collection)
	out.Source = pts[0]
	return out
}

func (c *Collection) geometry() map[string]any {
	entries := make([]any, len(c.Entries))
	for i, e := range c.Entries {
		entries[i] = e
	}
	return map[string]any{
		"source":          floatsJSON(c.Source),
		"entries":         entries,
		"childrenVisible": c.ChildrenVisible,
	}
}

// Rescale returns a copy of r with every coordinate multiplied by factor
// and the authored resolution cleared.
func Rescale(r Record, factor []float64) (Record, error) {
	pts := r.points()
	scaled := make([][]float64, len(pts))
	for i, p := range pts {
		s, err := coords.Scale(p, factor)
		if err != nil {
			return nil, err
		}
		scaled[i] = s
	}
	out := r.withPoints(scaled)
	out.Common().Resolution = nil
	return out, nil
}

// ToViewer converts r into viewer units. Records without an authored
// resolution are returned unchanged.
func ToViewer(r Record, viewerResolution []float64) (Record, error) {
	res := r.Common().Resolution
	if res == nil || len(viewerResolution) == 0 {
		return r, nil
	}
	f, err := coords.ScaleFactor(res, viewerResolution)
	if err != nil {
		return nil, err
	}
	return Rescale(r, f)
}

// TopLevel returns the records that do not belong to a collection.
func TopLevel(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Common().ParentID == "" {
			out = append(out, r)
		}
	}
	return out
}

// CloneAll deep-copies a record slice.
func CloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

func floatsJSON(v []float64) []any {
	out := make([]any, len(v))
	for i, f := range v {
		out[i] = f
	}
	return out
}

func segmentStrings(ids []uint64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatUint(id, 10)
	}
	return out
}
