// Package mapper turns table rows into annotation records, segment
// selections and split points.
//
// Every annotation mapper runs the same pipeline: column layout
// normalization, optional multipoint expansion, null filtering, rescaling,
// attribute extraction, record construction and optional grouping.
package mapper

import (
	"log"
	"slices"

	"github.com/agentic-research/ngstate/internal/annotation"
	"github.com/agentic-research/ngstate/internal/table"
)

// Context is the resolution information available at render time.
type Context struct {
	// ViewerResolution is the target coordinate space. When empty, records
	// keep their authored resolution and are scaled at serialization.
	ViewerResolution []float64
	// DataResolution applies when the mapper does not declare its own,
	// typically the owning layer's resolution.
	DataResolution []float64
}

func (c Context) dataResolution(own []float64) []float64 {
	if own != nil {
		return own
	}
	return c.DataResolution
}

// Options are the column bindings and flags shared by annotation mappers.
type Options struct {
	IDColumn          string
	SegmentColumn     string
	DescriptionColumn string
	TagColumn         string
	TagBoolColumns    []string
	GroupColumn       string

	// Multipoint expands rows whose geometry cells hold lists of vectors.
	Multipoint bool
	// SplitPositions forces (true) or forbids (false) the {name}_x/_y/_z
	// layout. Nil detects it.
	SplitPositions *bool
	// MixedLayout permits some geometry columns split and others not.
	MixedLayout bool
	// SetPosition asks the layer to center the viewer on the first record.
	SetPosition bool
	// GatherLinkedSegments gives each group the union of its members'
	// segments. Nil means true.
	GatherLinkedSegments *bool
	// ShareLinkedSegments also rewrites members' segments to that union.
	ShareLinkedSegments bool
	// CollapseGroups starts groups with their children hidden.
	CollapseGroups bool

	// DataResolution is the resolution the table's coordinates are in.
	DataResolution []float64
}

func (o Options) gather() bool {
	return o.GatherLinkedSegments == nil || *o.GatherLinkedSegments
}

// Result is what an annotation mapper produces.
type Result struct {
	// Annotations holds every record, group members and groups alike.
	Annotations []annotation.Record
	// Tags are the distinct tags seen, in order of first appearance.
	Tags []string
	// Position is the suggested viewer position, if requested.
	Position []float64
	// PositionResolution is the resolution Position is expressed in; nil
	// when it is already in viewer units.
	PositionResolution []float64
	// Dropped counts rows discarded for null or empty geometry.
	Dropped int
}

// TopLevel returns the records not owned by a group.
func (r *Result) TopLevel() []annotation.Record {
	return annotation.TopLevel(r.Annotations)
}

// AnnotationMapper renders a table into annotation records.
type AnnotationMapper interface {
	Name() string
	Render(t *table.Table, ctx Context) (*Result, error)
}

// builder constructs a record from the parsed geometry vectors of one row.
// Coordinates are in data units.
type builder func(pts [][]float64, row table.Row) (annotation.Record, bool, error)

type pipeline struct {
	name     string
	opts     Options
	geometry []string
	// required lists non-geometry columns that must be present and non-null.
	required []string
	build    builder
}

func (p *pipeline) render(t *table.Table, ctx Context) (*Result, error) {
	if t == nil || (t.Len() == 0 && len(t.Columns()) == 0) {
		return &Result{}, nil
	}
	if err := p.checkColumns(t); err != nil {
		return nil, err
	}
	layout, err := resolveLayout(p.name, t, p.geometry, p.opts.SplitPositions, p.opts.MixedLayout)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	seenTags := map[string]bool{}
	grouper := newGrouper(p.name)

	for i, row := range t.Rows() {
		units, err := expandRow(p.name, i, row, layout, p.opts.Multipoint)
		if err != nil {
			return nil, err
		}
		for u, unit := range units {
			pts, ok, err := parseGeometry(p.name, i, unit, layout)
			if err != nil {
				return nil, err
			}
			if !ok || p.missingRequired(row) {
				res.Dropped++
				continue
			}
			rec, ok, err := p.build(pts, row)
			if err != nil {
				return nil, &ValueError{Mapper: p.name, Row: i, Err: err}
			}
			if !ok {
				res.Dropped++
				continue
			}
			if err := p.attributes(rec, row, i, u, len(units)); err != nil {
				return nil, err
			}
			rec.Common().Resolution = slices.Clone(ctx.dataResolution(p.opts.DataResolution))
			if len(ctx.ViewerResolution) > 0 {
				if rec, err = annotation.ToViewer(rec, ctx.ViewerResolution); err != nil {
					return nil, err
				}
			}
			for _, tag := range rec.Common().Tags {
				if !seenTags[tag] {
					seenTags[tag] = true
					res.Tags = append(res.Tags, tag)
				}
			}
			res.Annotations = append(res.Annotations, rec)
			if p.opts.GroupColumn != "" {
				grouper.add(row[p.opts.GroupColumn], rec)
			}
		}
	}

	if res.Dropped > 0 {
		log.Printf("%s: dropped %d rows with null or empty geometry", p.name, res.Dropped)
	}

	groups, err := grouper.collections(annotation.GroupOptions{
		Gather:   p.opts.gather(),
		Share:    p.opts.ShareLinkedSegments,
		Collapse: p.opts.CollapseGroups,
	})
	if err != nil {
		return nil, err
	}
	res.Annotations = append(res.Annotations, groups...)

	if p.opts.SetPosition && len(res.Annotations) > 0 {
		first := res.Annotations[0]
		res.Position = first.Anchor()
		res.PositionResolution = slices.Clone(first.Common().Resolution)
	}
	return res, nil
}

func (p *pipeline) checkColumns(t *table.Table) error {
	cols := []string{p.opts.IDColumn, p.opts.SegmentColumn, p.opts.DescriptionColumn, p.opts.TagColumn, p.opts.GroupColumn}
	cols = append(cols, p.opts.TagBoolColumns...)
	cols = append(cols, p.required...)
	for _, c := range cols {
		if c != "" && !t.HasColumn(c) {
			return &MissingColumnError{Mapper: p.name, Column: c}
		}
	}
	return nil
}

func (p *pipeline) missingRequired(row table.Row) bool {
	for _, c := range p.required {
		if table.IsNull(row[c]) {
			return true
		}
	}
	return false
}

func (p *pipeline) attributes(rec annotation.Record, row table.Row, i, unit, units int) error {
	b := rec.Common()
	o := p.opts

	if o.IDColumn != "" {
		b.ID = table.String(row[o.IDColumn])
		if b.ID != "" && units > 1 {
			b.ID = b.ID + "_" + itoa(unit)
		}
	}
	annotation.EnsureID(rec)

	if o.DescriptionColumn != "" {
		b.Description = table.String(row[o.DescriptionColumn])
	}
	if o.SegmentColumn != "" {
		ids, err := table.SegmentIDs(row[o.SegmentColumn])
		if err != nil {
			return &ValueError{Mapper: p.name, Column: o.SegmentColumn, Row: i, Err: err}
		}
		b.Segments = ids
	}
	if o.TagColumn != "" {
		for _, v := range table.List(row[o.TagColumn]) {
			if s := table.String(v); s != "" && !slices.Contains(b.Tags, s) {
				b.Tags = append(b.Tags, s)
			}
		}
	}
	for _, c := range o.TagBoolColumns {
		if table.Truthy(row[c]) && !slices.Contains(b.Tags, c) {
			b.Tags = append(b.Tags, c)
		}
	}
	return nil
}
