package mapper

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/table"
)

// geomColumn is one geometry binding after layout normalization.
type geomColumn struct {
	name  string
	parts []string // {name}_x, _y, _z when split
}

func (g geomColumn) split() bool { return g.parts != nil }

func splitNames(name string) []string {
	out := make([]string, len(coords.DefaultNames))
	for i, axis := range coords.DefaultNames {
		out[i] = name + "_" + axis
	}
	return out
}

func resolveLayout(mapperName string, t *table.Table, names []string, force *bool, mixed bool) ([]geomColumn, error) {
	out := make([]geomColumn, 0, len(names))
	var split, unsplit []string
	for _, name := range names {
		parts := splitNames(name)
		hasWhole := t.HasColumn(name)
		missingPart := ""
		for _, p := range parts {
			if !t.HasColumn(p) {
				missingPart = p
				break
			}
		}
		hasSplit := missingPart == ""

		useSplit := false
		switch {
		case force != nil && *force:
			if !hasSplit {
				return nil, &MissingColumnError{Mapper: mapperName, Column: missingPart}
			}
			useSplit = true
		case force != nil:
			if !hasWhole {
				return nil, &MissingColumnError{Mapper: mapperName, Column: name}
			}
		case hasWhole:
		case hasSplit:
			useSplit = true
		default:
			return nil, &MissingColumnError{Mapper: mapperName, Column: name}
		}

		if useSplit {
			out = append(out, geomColumn{name: name, parts: parts})
			split = append(split, name)
		} else {
			out = append(out, geomColumn{name: name})
			unsplit = append(unsplit, name)
		}
	}
	if len(split) > 0 && len(unsplit) > 0 && !mixed {
		return nil, &ColumnLayoutError{Mapper: mapperName, Split: split, Unsplit: unsplit}
	}
	return out, nil
}

// unit is one output row's raw geometry cells keyed by geometry name.
type unit map[string]any

func nullUnit(layout []geomColumn) []unit {
	u := unit{}
	for _, g := range layout {
		u[g.name] = nil
	}
	return []unit{u}
}

// expandRow assembles split columns and, in multipoint mode, explodes list
// cells into one unit per vector.
func expandRow(mapperName string, i int, row table.Row, layout []geomColumn, multipoint bool) ([]unit, error) {
	if !multipoint {
		u := unit{}
		for _, g := range layout {
			u[g.name] = assemble(row, g)
		}
		return []unit{u}, nil
	}

	lists := make(map[string][]any, len(layout))
	counts := make(map[string]int, len(layout))
	for _, g := range layout {
		items, null, err := explode(row, g)
		if err != nil {
			return nil, &ValueError{Mapper: mapperName, Column: g.name, Row: i, Err: err}
		}
		if null {
			// a null cell drops the whole row in the null filter
			return nullUnit(layout), nil
		}
		lists[g.name] = items
		counts[g.name] = len(items)
	}

	n := -1
	for _, c := range counts {
		if n == -1 {
			n = c
		} else if c != n {
			return nil, &RowCountMismatchError{Mapper: mapperName, Row: i, Counts: counts}
		}
	}
	if n == 0 {
		// empty lists count as a dropped row rather than vanishing
		return nullUnit(layout), nil
	}
	out := make([]unit, n)
	for k := range out {
		u := unit{}
		for _, g := range layout {
			u[g.name] = lists[g.name][k]
		}
		out[k] = u
	}
	return out, nil
}

func assemble(row table.Row, g geomColumn) any {
	if !g.split() {
		return row[g.name]
	}
	vec := make([]any, len(g.parts))
	for i, p := range g.parts {
		v := row[p]
		if table.IsNull(v) {
			return nil
		}
		vec[i] = v
	}
	return vec
}

// explode returns the vectors held by a multipoint cell. A cell holding a
// single vector counts as one point.
func explode(row table.Row, g geomColumn) ([]any, bool, error) {
	if !g.split() {
		v := row[g.name]
		if table.IsNull(v) {
			return nil, true, nil
		}
		items := table.List(v)
		if !table.IsList(v) {
			return nil, false, fmt.Errorf("multipoint cell is %T, not a list", v)
		}
		if len(items) > 0 && !table.IsList(items[0]) {
			return []any{v}, false, nil
		}
		return items, false, nil
	}

	axes := make([][]any, len(g.parts))
	n := -1
	for i, p := range g.parts {
		v := row[p]
		if table.IsNull(v) {
			return nil, true, nil
		}
		axes[i] = table.List(v)
		if n == -1 {
			n = len(axes[i])
		} else if len(axes[i]) != n {
			return nil, false, fmt.Errorf("split columns of %q hold %d and %d values", g.name, n, len(axes[i]))
		}
	}
	out := make([]any, n)
	for k := range out {
		vec := make([]any, len(axes))
		for a := range axes {
			vec[a] = axes[a][k]
		}
		out[k] = vec
	}
	return out, false, nil
}

// parseGeometry converts a unit's cells to vectors in layout order. ok is
// false when any cell is null.
func parseGeometry(mapperName string, i int, u unit, layout []geomColumn) ([][]float64, bool, error) {
	pts := make([][]float64, len(layout))
	for k, g := range layout {
		vec, null, ok := table.Vector(u[g.name])
		if !ok {
			return nil, false, &ValueError{Mapper: mapperName, Column: g.name, Row: i, Err: fmt.Errorf("not a coordinate vector: %v", u[g.name])}
		}
		if null {
			return nil, false, nil
		}
		pts[k] = vec
	}
	return pts, true, nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func sortedStrings(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
