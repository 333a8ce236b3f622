package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const synapseSpec = `
site: spelunker
dimensions:
  resolution: [4, 4, 40]
layout: xy-3d
layers:
  - name: em
    type: image
    sources:
      - url: precomputed://gs://bucket/em
  - name: seg
    type: segmentation
    sources:
      - url: graphene://https://example.org/seg
    segments: [864691135000000001]
    segment_colors:
      864691135000000001: red
    mappers:
      - kind: selection
        data: synapses
        priority: 1
        columns: [post_pt_root_id]
  - name: synapses
    type: annotation
    tags: [excitatory, inhibitory]
    linked_segmentation: seg
    mappers:
      - kind: point
        data: synapses
        point: ctr_pt_position
        segment: post_pt_root_id
        tag: cell_type
        data_resolution: [8, 8, 40]
        set_position: true
`

func TestParse(t *testing.T) {
	spec, err := Parse([]byte(synapseSpec))
	require.NoError(t, err)

	assert.Equal(t, "spelunker", spec.Site)
	assert.Equal(t, []float64{4, 4, 40}, spec.Dimensions.Resolution)
	assert.Equal(t, 1.0, spec.CrossSectionScale)
	assert.Equal(t, 50000.0, spec.ProjectionScale)
	require.NotNil(t, spec.InferCoordinates)
	assert.True(t, *spec.InferCoordinates)

	require.Len(t, spec.Layers, 3)
	seg := spec.Layers[1]
	assert.Equal(t, []uint64{864691135000000001}, seg.Segments)
	assert.Equal(t, map[string]string{"864691135000000001": "red"}, seg.SegmentColors)
	assert.Equal(t, MapperSelection, seg.Mappers[0].Kind)

	pt := spec.Layers[2].Mappers[0]
	assert.Equal(t, "ctr_pt_position", pt.Point)
	assert.Equal(t, []float64{8, 8, 40}, pt.DataResolution)
	assert.True(t, pt.SetPosition)
}

func TestParseJSON(t *testing.T) {
	spec, err := Parse([]byte(`{"layers":[{"name":"a","type":"image","sources":[{"url":"precomputed://x"}]}],"infer_coordinates":false}`))
	require.NoError(t, err)
	require.Len(t, spec.Layers, 1)
	assert.False(t, *spec.InferCoordinates)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", `layers: [{type: image}]`},
		{"duplicate name", `layers: [{name: a, type: image}, {name: a, type: segmentation}]`},
		{"unknown type", `layers: [{name: a, type: mesh}]`},
		{"wrong mapper kind", `layers: [{name: a, type: segmentation, mappers: [{kind: point, point: p}]}]`},
		{"point without column", `layers: [{name: a, type: annotation, mappers: [{kind: point}]}]`},
		{"line without b", `layers: [{name: a, type: annotation, mappers: [{kind: line, point_a: p}]}]`},
		{"empty selection", `layers: [{name: a, type: segmentation, mappers: [{kind: selection}]}]`},
		{"source without url", `layers: [{name: a, type: image, sources: [{resolution: [1, 1, 1]}]}]`},
		{"unknown selected layer", "selected_layer: nope\nlayers: [{name: a, type: image}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte(synapseSpec), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, spec.Layers, 3)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("layers: ["), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}
