package mapper

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/table"
)

// SplitPointMapper turns a table of split (multicut) points for a single
// object into two teams.
type SplitPointMapper struct {
	IDColumn         string
	PointColumn      string
	TeamColumn       string
	SupervoxelColumn string
	// Focus selects the layer and centers the view on the points.
	Focus          bool
	SplitPositions *bool
	DataResolution []float64
}

// Team is one side of a split.
type Team struct {
	Label       string
	Points      [][]float64
	Supervoxels []uint64
}

// SplitPoints is the mapper's output. Points are in viewer units unless
// Resolution is set.
type SplitPoints struct {
	ObjectID   uint64
	Red, Blue  Team
	Focus      bool
	Resolution []float64
}

func (m *SplitPointMapper) Name() string { return "split point mapper" }

// Render partitions rows by team. Team values "red" and "blue" are honored
// by name; any other pair is assigned in sorted order. Supervoxel ids
// default to the object id.
func (m *SplitPointMapper) Render(t *table.Table, ctx Context) (*SplitPoints, error) {
	if t == nil {
		return nil, &MultipleObjectIDsError{Mapper: m.Name()}
	}
	for _, c := range []string{m.IDColumn, m.TeamColumn, m.SupervoxelColumn} {
		if c != "" && !t.HasColumn(c) {
			return nil, &MissingColumnError{Mapper: m.Name(), Column: c}
		}
	}
	if m.IDColumn == "" || m.TeamColumn == "" {
		return nil, fmt.Errorf("%s: id and team columns are required", m.Name())
	}
	layout, err := resolveLayout(m.Name(), t, []string{m.PointColumn}, m.SplitPositions, false)
	if err != nil {
		return nil, err
	}

	var factor []float64
	if len(ctx.ViewerResolution) > 0 {
		if factor, err = coords.ScaleFactor(ctx.dataResolution(m.DataResolution), ctx.ViewerResolution); err != nil {
			return nil, err
		}
	}

	type point struct {
		team  string
		pos   []float64
		sv    uint64
		hasSV bool
	}
	var pts []point
	objects := map[uint64]bool{}
	var objectOrder []uint64
	teams := map[string]bool{}

	for i, row := range t.Rows() {
		units, err := expandRow(m.Name(), i, row, layout, false)
		if err != nil {
			return nil, err
		}
		vecs, ok, err := parseGeometry(m.Name(), i, units[0], layout)
		if err != nil {
			return nil, err
		}
		if !ok || table.IsNull(row[m.TeamColumn]) || table.IsNull(row[m.IDColumn]) {
			continue
		}
		oid, err := table.SegmentID(row[m.IDColumn])
		if err != nil {
			return nil, &ValueError{Mapper: m.Name(), Column: m.IDColumn, Row: i, Err: err}
		}
		if !objects[oid] {
			objects[oid] = true
			objectOrder = append(objectOrder, oid)
		}
		pos := vecs[0]
		if factor != nil {
			if pos, err = coords.Scale(pos, factor); err != nil {
				return nil, err
			}
		}
		p := point{team: table.String(row[m.TeamColumn]), pos: pos}
		if m.SupervoxelColumn != "" && !table.IsNull(row[m.SupervoxelColumn]) {
			sv, err := table.SegmentID(row[m.SupervoxelColumn])
			if err != nil {
				return nil, &ValueError{Mapper: m.Name(), Column: m.SupervoxelColumn, Row: i, Err: err}
			}
			p.sv, p.hasSV = sv, true
		}
		teams[p.team] = true
		pts = append(pts, p)
	}

	if len(objectOrder) != 1 {
		return nil, &MultipleObjectIDsError{Mapper: m.Name(), IDs: objectOrder}
	}
	red, blue, err := assignTeams(teams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name(), err)
	}

	out := &SplitPoints{
		ObjectID: objectOrder[0],
		Red:      Team{Label: red},
		Blue:     Team{Label: blue},
		Focus:    m.Focus,
	}
	if factor == nil {
		out.Resolution = slices.Clone(ctx.dataResolution(m.DataResolution))
	}
	for _, p := range pts {
		sv := out.ObjectID
		if p.hasSV {
			sv = p.sv
		}
		team := &out.Red
		if p.team == blue {
			team = &out.Blue
		}
		team.Points = append(team.Points, p.pos)
		team.Supervoxels = append(team.Supervoxels, sv)
	}
	return out, nil
}

func assignTeams(teams map[string]bool) (string, string, error) {
	if len(teams) > 2 {
		labels := make([]string, 0, len(teams))
		for k := range teams {
			labels = append(labels, k)
		}
		slices.Sort(labels)
		return "", "", &ValueError{Column: "team", Err: fmt.Errorf("%d team values %v, want at most 2", len(labels), labels)}
	}
	labels := make([]string, 0, 2)
	for k := range teams {
		labels = append(labels, k)
	}
	slices.Sort(labels)

	var red, blue string
	for _, l := range labels {
		switch strings.ToLower(l) {
		case "red":
			red = l
		case "blue":
			blue = l
		}
	}
	for _, l := range labels {
		if l == red || l == blue {
			continue
		}
		if red == "" {
			red = l
		} else if blue == "" {
			blue = l
		}
	}
	return red, blue, nil
}
