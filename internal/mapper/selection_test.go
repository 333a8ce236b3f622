package mapper

import (
	"testing"

	"github.com/agentic-research/ngstate/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionMapper(t *testing.T) {
	tbl := table.New([]string{"pt", "root_id"}, []table.Row{
		{"pt": vec(0, 0, 0), "root_id": int64(5)},
		{"pt": vec(10, 0, 0), "root_id": int64(5)},
		{"pt": vec(0, 0, 0), "root_id": int64(9)},
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		m := &SelectionMapper{DataColumns: []string{"root_id"}}
		sel, err := m.Render(tbl)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint64{5, 9}, sel.IDs)
		assert.Nil(t, sel.Colors)
	})

	t.Run("fixed ids and colors", func(t *testing.T) {
		m := &SelectionMapper{
			DataColumns:   []string{"root_id"},
			FixedIDs:      []uint64{2, 9},
			FixedIDColors: []string{"red", "#00f"},
		}
		sel, err := m.Render(tbl)
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 5, 9}, sel.IDs)
		assert.Equal(t, map[uint64]string{2: "#ff0000", 9: "#0000ff"}, sel.Colors)
	})

	t.Run("color column", func(t *testing.T) {
		colored := table.New([]string{"pre", "post", "c"}, []table.Row{
			{"pre": int64(1), "post": []any{int64(2), int64(3)}, "c": "green"},
			{"pre": int64(4), "post": nil, "c": "inhibitory"},
			{"pre": int64(6), "post": nil, "c": nil},
		})
		m := &SelectionMapper{DataColumns: []string{"pre", "post"}, ColorColumn: "c"}
		sel, err := m.Render(colored)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 3, 4, 6}, sel.IDs)
		assert.Equal(t, "#008000", sel.Colors[3])
		assert.Equal(t, "#1f77b4", sel.Colors[4])
		assert.NotContains(t, sel.Colors, uint64(6))
	})

	t.Run("nil table uses fixed ids", func(t *testing.T) {
		sel, err := (&SelectionMapper{FixedIDs: []uint64{3, 1}}).Render(nil)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 3}, sel.IDs)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := (&SelectionMapper{DataColumns: []string{"nope"}}).Render(tbl)
		assert.ErrorIs(t, err, ErrMissingColumn)

		_, err = (&SelectionMapper{FixedIDs: []uint64{1}, FixedIDColors: []string{"red", "blue"}}).Render(nil)
		assert.Error(t, err)
	})
}

func TestSplitPointMapper(t *testing.T) {
	tbl := table.New([]string{"seg_id", "pts", "team", "sv"}, []table.Row{
		{"seg_id": int64(100), "pts": vec(1, 1, 1), "team": "blue", "sv": int64(11)},
		{"seg_id": int64(100), "pts": vec(2, 2, 2), "team": "red", "sv": nil},
		{"seg_id": int64(100), "pts": vec(3, 3, 3), "team": "blue", "sv": int64(13)},
		{"seg_id": int64(100), "pts": nil, "team": "red", "sv": nil},
	})

	t.Run("partitions teams", func(t *testing.T) {
		m := &SplitPointMapper{IDColumn: "seg_id", PointColumn: "pts", TeamColumn: "team", SupervoxelColumn: "sv", Focus: true, DataResolution: []float64{8, 8, 40}}
		sp, err := m.Render(tbl, Context{ViewerResolution: []float64{4, 4, 40}})
		require.NoError(t, err)
		assert.Equal(t, uint64(100), sp.ObjectID)
		assert.True(t, sp.Focus)
		assert.Equal(t, "red", sp.Red.Label)
		assert.Equal(t, [][]float64{{4, 4, 2}}, sp.Red.Points)
		assert.Equal(t, []uint64{100}, sp.Red.Supervoxels)
		assert.Len(t, sp.Blue.Points, 2)
		assert.Equal(t, []uint64{11, 13}, sp.Blue.Supervoxels)
		assert.Nil(t, sp.Resolution)
	})

	t.Run("multiple objects", func(t *testing.T) {
		bad := table.New([]string{"seg_id", "pts", "team"}, []table.Row{
			{"seg_id": int64(1), "pts": vec(1, 1, 1), "team": true},
			{"seg_id": int64(2), "pts": vec(2, 2, 2), "team": false},
		})
		m := &SplitPointMapper{IDColumn: "seg_id", PointColumn: "pts", TeamColumn: "team"}
		_, err := m.Render(bad, Context{})
		var me *MultipleObjectIDsError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, []uint64{1, 2}, me.IDs)
	})

	t.Run("three teams", func(t *testing.T) {
		bad := table.New([]string{"seg_id", "pts", "team"}, []table.Row{
			{"seg_id": int64(1), "pts": vec(1, 1, 1), "team": "a"},
			{"seg_id": int64(1), "pts": vec(2, 2, 2), "team": "b"},
			{"seg_id": int64(1), "pts": vec(2, 2, 2), "team": "c"},
		})
		m := &SplitPointMapper{IDColumn: "seg_id", PointColumn: "pts", TeamColumn: "team"}
		_, err := m.Render(bad, Context{})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}
