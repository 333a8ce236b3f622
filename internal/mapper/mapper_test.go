package mapper

import (
	"errors"
	"math"
	"testing"

	"github.com/agentic-research/ngstate/internal/annotation"
	"github.com/agentic-research/ngstate/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(v ...float64) []any {
	out := make([]any, len(v))
	for i, f := range v {
		out[i] = f
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestPointMapper(t *testing.T) {
	t.Run("one record per non-null row", func(t *testing.T) {
		tbl := table.New([]string{"pt", "root_id"}, []table.Row{
			{"pt": vec(0, 0, 0), "root_id": int64(5)},
			{"pt": nil, "root_id": int64(5)},
			{"pt": vec(1, math.NaN(), 0), "root_id": int64(6)},
			{"pt": vec(10, 0, 0), "root_id": int64(9)},
		})
		m := &PointMapper{PointColumn: "pt", Options: Options{SegmentColumn: "root_id"}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		require.Len(t, res.Annotations, 2)
		assert.Equal(t, 2, res.Dropped)

		p := res.Annotations[1].(*annotation.Point)
		assert.Equal(t, []float64{10, 0, 0}, p.Point)
		assert.Equal(t, []uint64{9}, p.Segments)
		assert.NotEmpty(t, p.ID)
	})

	t.Run("split columns are stacked", func(t *testing.T) {
		tbl := table.New([]string{"pt_x", "pt_y", "pt_z"}, []table.Row{
			{"pt_x": 1.0, "pt_y": 2.0, "pt_z": 3.0},
			{"pt_x": 4.0, "pt_y": nil, "pt_z": 6.0},
		})
		m := &PointMapper{PointColumn: "pt"}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		require.Len(t, res.Annotations, 1)
		assert.Equal(t, []float64{1, 2, 3}, res.Annotations[0].(*annotation.Point).Point)
	})

	t.Run("forced unsplit layout misses column", func(t *testing.T) {
		tbl := table.New([]string{"pt_x", "pt_y", "pt_z"}, nil)
		m := &PointMapper{PointColumn: "pt", Options: Options{SplitPositions: boolPtr(false)}}
		_, err := m.Render(tbl, Context{})
		var mc *MissingColumnError
		require.ErrorAs(t, err, &mc)
		assert.Equal(t, "pt", mc.Column)
	})

	t.Run("missing attribute column", func(t *testing.T) {
		tbl := table.New([]string{"pt"}, []table.Row{{"pt": vec(1, 2, 3)}})
		m := &PointMapper{PointColumn: "pt", Options: Options{DescriptionColumn: "note"}}
		_, err := m.Render(tbl, Context{})
		assert.True(t, errors.Is(err, ErrMissingColumn))
	})

	t.Run("resolution scaling", func(t *testing.T) {
		tbl := table.New([]string{"pt"}, []table.Row{{"pt": vec(10, 10, 10)}})
		m := &PointMapper{PointColumn: "pt", Options: Options{DataResolution: []float64{8, 8, 40}, SetPosition: true}}

		res, err := m.Render(tbl, Context{ViewerResolution: []float64{4, 4, 40}})
		require.NoError(t, err)
		p := res.Annotations[0].(*annotation.Point)
		assert.Equal(t, []float64{20, 20, 10}, p.Point)
		assert.Nil(t, p.Resolution)
		assert.Equal(t, []float64{20, 20, 10}, res.Position)
		assert.Nil(t, res.PositionResolution)

		deferred, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		d := deferred.Annotations[0].(*annotation.Point)
		assert.Equal(t, []float64{10, 10, 10}, d.Point)
		assert.Equal(t, []float64{8, 8, 40}, d.Resolution)
		assert.Equal(t, []float64{8, 8, 40}, deferred.PositionResolution)
	})

	t.Run("tags from column and booleans", func(t *testing.T) {
		tbl := table.New([]string{"pt", "kind", "is_big"}, []table.Row{
			{"pt": vec(0, 0, 0), "kind": "axon", "is_big": true},
			{"pt": vec(1, 0, 0), "kind": []any{"dendrite", nil}, "is_big": false},
			{"pt": vec(2, 0, 0), "kind": nil, "is_big": nil},
		})
		m := &PointMapper{PointColumn: "pt", Options: Options{TagColumn: "kind", TagBoolColumns: []string{"is_big"}}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		assert.Equal(t, []string{"axon", "is_big"}, res.Annotations[0].Common().Tags)
		assert.Equal(t, []string{"dendrite"}, res.Annotations[1].Common().Tags)
		assert.Empty(t, res.Annotations[2].Common().Tags)
		assert.Equal(t, []string{"axon", "is_big", "dendrite"}, res.Tags)
	})

	t.Run("id column", func(t *testing.T) {
		tbl := table.New([]string{"pt", "id"}, []table.Row{{"pt": vec(0, 0, 0), "id": "syn-1"}})
		m := &PointMapper{PointColumn: "pt", Options: Options{IDColumn: "id"}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		assert.Equal(t, "syn-1", res.Annotations[0].Common().ID)
	})

	t.Run("empty table", func(t *testing.T) {
		res, err := (&PointMapper{PointColumn: "pt"}).Render(table.FromRows(nil), Context{})
		require.NoError(t, err)
		assert.Empty(t, res.Annotations)
	})
}

func TestLineMapperLayout(t *testing.T) {
	tbl := table.New([]string{"a", "b_x", "b_y", "b_z"}, []table.Row{
		{"a": vec(0, 0, 0), "b_x": 1.0, "b_y": 1.0, "b_z": 1.0},
	})

	t.Run("mixed layout is rejected", func(t *testing.T) {
		m := &LineMapper{PointColumnA: "a", PointColumnB: "b"}
		_, err := m.Render(tbl, Context{})
		var le *ColumnLayoutError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, []string{"b"}, le.Split)
		assert.Equal(t, []string{"a"}, le.Unsplit)
	})

	t.Run("mixed layout when flagged", func(t *testing.T) {
		m := &LineMapper{PointColumnA: "a", PointColumnB: "b", Options: Options{MixedLayout: true}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		l := res.Annotations[0].(*annotation.Line)
		assert.Equal(t, []float64{0, 0, 0}, l.A)
		assert.Equal(t, []float64{1, 1, 1}, l.B)
	})
}

func TestMultipoint(t *testing.T) {
	t.Run("expands and broadcasts", func(t *testing.T) {
		tbl := table.New([]string{"a", "b", "root_id"}, []table.Row{
			{"a": []any{vec(0, 0, 0), vec(1, 1, 1)}, "b": []any{vec(2, 2, 2), vec(3, 3, 3)}, "root_id": int64(7)},
			{"a": vec(5, 5, 5), "b": vec(6, 6, 6), "root_id": int64(8)},
		})
		m := &LineMapper{PointColumnA: "a", PointColumnB: "b", Options: Options{Multipoint: true, SegmentColumn: "root_id"}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		require.Len(t, res.Annotations, 3)
		second := res.Annotations[1].(*annotation.Line)
		assert.Equal(t, []float64{1, 1, 1}, second.A)
		assert.Equal(t, []float64{3, 3, 3}, second.B)
		assert.Equal(t, []uint64{7}, second.Segments)
		assert.Equal(t, []uint64{8}, res.Annotations[2].Common().Segments)
	})

	t.Run("split multipoint", func(t *testing.T) {
		tbl := table.New([]string{"pt_x", "pt_y", "pt_z"}, []table.Row{
			{"pt_x": []any{1.0, 2.0}, "pt_y": []any{3.0, 4.0}, "pt_z": []any{5.0, 6.0}},
		})
		m := &PointMapper{PointColumn: "pt", Options: Options{Multipoint: true}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		require.Len(t, res.Annotations, 2)
		assert.Equal(t, []float64{2, 4, 6}, res.Annotations[1].(*annotation.Point).Point)
	})

	t.Run("empty lists count as dropped", func(t *testing.T) {
		tbl := table.New([]string{"pt"}, []table.Row{
			{"pt": []any{}},
			{"pt": []any{vec(1, 1, 1)}},
		})
		m := &PointMapper{PointColumn: "pt", Options: Options{Multipoint: true}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		require.Len(t, res.Annotations, 1)
		assert.Equal(t, 1, res.Dropped)
	})

	t.Run("count mismatch", func(t *testing.T) {
		tbl := table.New([]string{"a", "b"}, []table.Row{
			{"a": []any{vec(0, 0, 0), vec(1, 1, 1)}, "b": []any{vec(2, 2, 2)}},
		})
		m := &LineMapper{PointColumnA: "a", PointColumnB: "b", Options: Options{Multipoint: true}}
		_, err := m.Render(tbl, Context{})
		var rc *RowCountMismatchError
		require.ErrorAs(t, err, &rc)
		assert.Equal(t, 0, rc.Row)
		assert.Equal(t, map[string]int{"a": 2, "b": 1}, rc.Counts)
	})
}

func TestGrouping(t *testing.T) {
	rows := []table.Row{
		{"pt": vec(0, 0, 0), "g": "g1", "root_id": int64(1)},
		{"pt": vec(1, 0, 0), "g": "g1", "root_id": int64(2)},
		{"pt": vec(2, 0, 0), "g": nil, "root_id": int64(3)},
		{"pt": vec(3, 0, 0), "g": "g1", "root_id": int64(2)},
		{"pt": vec(4, 0, 0), "g": math.NaN(), "root_id": int64(4)},
		{"pt": vec(5, 0, 0), "g": "g1", "root_id": int64(5)},
	}
	tbl := table.New([]string{"pt", "g", "root_id"}, rows)

	t.Run("three top-level entities", func(t *testing.T) {
		m := &PointMapper{PointColumn: "pt", Options: Options{GroupColumn: "g", SegmentColumn: "root_id", CollapseGroups: true}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		require.Len(t, res.Annotations, 7)

		top := res.TopLevel()
		require.Len(t, top, 3)

		var group *annotation.Collection
		for _, r := range top {
			if c, ok := r.(*annotation.Collection); ok {
				group = c
			}
		}
		require.NotNil(t, group)
		assert.Len(t, group.Entries, 4)
		assert.Equal(t, []uint64{1, 2, 5}, group.Segments)
		assert.False(t, group.ChildrenVisible)
		assert.Equal(t, []float64{0, 0, 0}, group.Source)

		ids := map[string]bool{}
		for _, r := range res.Annotations {
			if r.Kind() == annotation.KindPoint {
				ids[r.Common().ID] = true
			}
		}
		assert.Len(t, ids, 6)
		for _, e := range group.Entries {
			assert.True(t, ids[e])
		}
		// members keep their own segments without sharing
		assert.Equal(t, []uint64{1}, res.Annotations[0].Common().Segments)
	})

	t.Run("share rewrites member segments", func(t *testing.T) {
		m := &PointMapper{PointColumn: "pt", Options: Options{GroupColumn: "g", SegmentColumn: "root_id", ShareLinkedSegments: true}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 5}, res.Annotations[0].Common().Segments)
		assert.Equal(t, []uint64{3}, res.Annotations[2].Common().Segments)
	})

	t.Run("gather disabled", func(t *testing.T) {
		m := &PointMapper{PointColumn: "pt", Options: Options{GroupColumn: "g", SegmentColumn: "root_id", GatherLinkedSegments: boolPtr(false)}}
		res, err := m.Render(tbl, Context{})
		require.NoError(t, err)
		last := res.Annotations[len(res.Annotations)-1]
		assert.Empty(t, last.Common().Segments)
	})

	t.Run("string and numeric keys stay apart", func(t *testing.T) {
		mixed := table.New([]string{"pt", "g"}, []table.Row{
			{"pt": vec(0, 0, 0), "g": "3"},
			{"pt": vec(1, 0, 0), "g": int64(3)},
			{"pt": vec(2, 0, 0), "g": 3.0},
		})
		m := &PointMapper{PointColumn: "pt", Options: Options{GroupColumn: "g"}}
		res, err := m.Render(mixed, Context{})
		require.NoError(t, err)
		top := res.TopLevel()
		require.Len(t, top, 2)
		assert.Len(t, top[0].(*annotation.Collection).Entries, 1)
		assert.Len(t, top[1].(*annotation.Collection).Entries, 2)
	})
}

func TestSphereMapper(t *testing.T) {
	tbl := table.New([]string{"ctr", "r"}, []table.Row{
		{"ctr": vec(0, 0, 0), "r": 10.0},
		{"ctr": vec(1, 1, 1), "r": vec(1, 2, 3)},
		{"ctr": vec(2, 2, 2), "r": nil},
	})
	m := &SphereMapper{CenterColumn: "ctr", RadiusColumn: "r", ZMultiplier: 0.1, Options: Options{DataResolution: []float64{4, 4, 40}}}
	res, err := m.Render(tbl, Context{ViewerResolution: []float64{4, 4, 40}})
	require.NoError(t, err)
	require.Len(t, res.Annotations, 2)
	assert.Equal(t, []float64{10, 10, 1}, res.Annotations[0].(*annotation.Ellipsoid).Radii)
	assert.Equal(t, []float64{1, 2, 3}, res.Annotations[1].(*annotation.Ellipsoid).Radii)
	assert.Equal(t, 1, res.Dropped)
}

func TestBoundingBoxMapper(t *testing.T) {
	tbl := table.New([]string{"lo", "hi"}, []table.Row{{"lo": vec(0, 0, 0), "hi": vec(2, 2, 2)}})
	m := &BoundingBoxMapper{PointColumnA: "lo", PointColumnB: "hi", Options: Options{SetPosition: true}}
	res, err := m.Render(tbl, Context{})
	require.NoError(t, err)
	assert.Equal(t, annotation.KindBoundingBox, res.Annotations[0].Kind())
	assert.Equal(t, []float64{1, 1, 1}, res.Position)
}
