package mapper

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/agentic-research/ngstate/internal/color"
	"github.com/agentic-research/ngstate/internal/table"
)

// SelectionMapper picks visible segments out of one or more id columns.
type SelectionMapper struct {
	DataColumns   []string
	FixedIDs      []uint64
	FixedIDColors []string
	// ColorColumn colors every id found on the same row. Cells may be hex
	// strings, CSS names, [r, g, b] floats in [0, 1], or category labels,
	// which draw from a categorical palette.
	ColorColumn string
}

// Selection is the mapper's output.
type Selection struct {
	IDs    []uint64
	Colors map[uint64]string
}

func (m *SelectionMapper) Name() string { return "selection mapper" }

// Render collects ids from the data columns plus the fixed list. Duplicate
// ids collapse; IDs come back sorted.
func (m *SelectionMapper) Render(t *table.Table) (*Selection, error) {
	if len(m.FixedIDColors) > 0 && len(m.FixedIDColors) != len(m.FixedIDs) {
		return nil, fmt.Errorf("%s: %d fixed colors for %d fixed ids", m.Name(), len(m.FixedIDColors), len(m.FixedIDs))
	}

	ids := roaring64.New()
	colors := map[uint64]string{}
	palette := color.NewPalette()

	if t != nil && (t.Len() > 0 || len(t.Columns()) > 0) {
		cols := append([]string(nil), m.DataColumns...)
		if m.ColorColumn != "" {
			cols = append(cols, m.ColorColumn)
		}
		for _, c := range cols {
			if !t.HasColumn(c) {
				return nil, &MissingColumnError{Mapper: m.Name(), Column: c}
			}
		}

		for i, row := range t.Rows() {
			var rowColor string
			if m.ColorColumn != "" && !table.IsNull(row[m.ColorColumn]) {
				c, err := cellColor(row[m.ColorColumn], palette)
				if err != nil {
					return nil, &ValueError{Mapper: m.Name(), Column: m.ColorColumn, Row: i, Err: err}
				}
				rowColor = c
			}
			for _, col := range m.DataColumns {
				rowIDs, err := table.SegmentIDs(row[col])
				if err != nil {
					return nil, &ValueError{Mapper: m.Name(), Column: col, Row: i, Err: err}
				}
				ids.AddMany(rowIDs)
				if rowColor != "" {
					for _, id := range rowIDs {
						colors[id] = rowColor
					}
				}
			}
		}
	}

	ids.AddMany(m.FixedIDs)
	for i, c := range m.FixedIDColors {
		hex, err := color.Parse(c)
		if err != nil {
			return nil, fmt.Errorf("%s: fixed color %d: %w", m.Name(), i, err)
		}
		colors[m.FixedIDs[i]] = hex
	}

	sel := &Selection{IDs: ids.ToArray()}
	if len(colors) > 0 {
		sel.Colors = colors
	}
	return sel, nil
}

func cellColor(v any, palette *color.Palette) (string, error) {
	if table.IsList(v) {
		vec, _, ok := table.Vector(v)
		if !ok {
			return "", fmt.Errorf("color %v is not numeric", v)
		}
		return color.RGB(vec)
	}
	s := table.String(v)
	if hex, err := color.Parse(s); err == nil {
		return hex, nil
	}
	return palette.For(s), nil
}
