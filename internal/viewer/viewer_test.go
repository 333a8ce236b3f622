package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentic-research/ngstate/internal/annotation"
	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/datamap"
	"github.com/agentic-research/ngstate/internal/layer"
	"github.com/agentic-research/ngstate/internal/mapper"
	"github.com/agentic-research/ngstate/internal/sourceinfo"
	"github.com/agentic-research/ngstate/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var space = coords.MustNew([]float64{4, 4, 40}, nil, nil)

func vec(v ...float64) []any {
	out := make([]any, len(v))
	for i, f := range v {
		out[i] = f
	}
	return out
}

func synapseState(t *testing.T) *State {
	t.Helper()
	s := New(space)
	img := layer.NewImageLayer("img").AddSource(layer.Source{URL: "precomputed://gs://bucket/img"})
	seg := layer.NewSegmentationLayer("seg").AddSource(layer.Source{URL: "graphene://https://example.org/seg"})
	annos, err := layer.NewAnnotationLayer("syn", []string{"pre", "post"})
	require.NoError(t, err)
	annos.LinkedSegmentation = "seg"
	require.NoError(t, s.AddLayer(img, seg, annos))
	return s
}

func TestToDict(t *testing.T) {
	s := synapseState(t)
	s.Selected = &SelectedLayer{Name: "syn", Visible: true}

	doc, err := s.ToDict(context.Background())
	require.NoError(t, err)

	dims := doc["dimensions"].(map[string]any)
	require.Len(t, dims, 3)
	z := dims["z"].([]any)
	assert.InDelta(t, 40e-9, z[0].(float64), 1e-15)
	assert.Equal(t, "m", z[1])
	assert.Equal(t, "xy-3d", doc["layout"])
	assert.Equal(t, 1.0, doc["crossSectionScale"])
	assert.Equal(t, 50000.0, doc["projectionScale"])
	assert.Equal(t, false, doc["showSlices"])
	assert.NotContains(t, doc, "position")
	assert.Equal(t, map[string]any{"layer": "syn", "visible": true}, doc["selectedLayer"])

	layers := doc["layers"].([]any)
	require.Len(t, layers, 3)
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.(map[string]any)["name"].(string)
	}
	assert.Equal(t, []string{"img", "seg", "syn"}, names)
	assert.Equal(t, "graphene://middleauth+https://example.org/seg", layers[1].(map[string]any)["source"])
}

func TestToDictSiteRewrite(t *testing.T) {
	s := synapseState(t)
	s.Site = "google"
	doc, err := s.ToDict(context.Background())
	require.NoError(t, err)
	seg := doc["layers"].([]any)[1].(map[string]any)
	assert.Equal(t, "graphene://https://example.org/seg", seg["source"])

	s.Site = "nowhere"
	_, err = s.ToDict(context.Background())
	assert.Error(t, err)
}

func TestToDictRejectsBadLayout(t *testing.T) {
	s := New(space)
	s.Layout = "sideways"
	_, err := s.ToDict(context.Background())
	assert.Error(t, err)
}

func TestDuplicateLayerName(t *testing.T) {
	s := New(space)
	require.NoError(t, s.AddLayer(layer.NewImageLayer("a")))
	err := s.AddLayer(layer.NewSegmentationLayer("a"))
	assert.ErrorIs(t, err, ErrDuplicateLayerName)
	assert.Len(t, s.Layers(), 1)

	assert.True(t, s.RemoveLayer("a"))
	assert.False(t, s.RemoveLayer("a"))
}

func TestMapWithoutDataMapsIsIdentity(t *testing.T) {
	s := synapseState(t)
	before, err := s.ToDict(context.Background())
	require.NoError(t, err)

	mapped, err := s.Map(Data{})
	require.NoError(t, err)
	after, err := mapped.ToDict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMapResolvesDataMaps(t *testing.T) {
	s := New(space)
	seg := layer.NewSegmentationLayer("seg")
	seg.AddSelectionData(&mapper.SelectionMapper{DataColumns: []string{"root_id"}}, datamap.New("").WithPriority(datamap.SourcePriority))
	annos, err := layer.NewAnnotationLayer("syn", nil)
	require.NoError(t, err)
	annos.AddMappedData(&mapper.PointMapper{PointColumn: "pt", Options: mapper.Options{
		SegmentColumn:  "root_id",
		SetPosition:    true,
		DataResolution: []float64{8, 8, 40},
	}}, datamap.New(""))
	require.NoError(t, s.AddLayer(annos, seg))

	_, err = s.ToDict(context.Background())
	var unmapped *datamap.UnmappedDataError
	require.ErrorAs(t, err, &unmapped)
	assert.ErrorIs(t, err, datamap.ErrUnmapped)
	assert.True(t, s.Pending())

	tbl := table.New([]string{"pt", "root_id"}, []table.Row{
		{"pt": vec(10, 10, 10), "root_id": int64(5)},
		{"pt": vec(2, 2, 2), "root_id": int64(9)},
	})
	mapped, err := s.Map(Single(tbl))
	require.NoError(t, err)
	assert.True(t, s.Pending(), "Map must leave the template untouched")
	assert.False(t, mapped.Pending())

	doc, err := mapped.ToDict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{20.0, 20.0, 10.0}, doc["position"])
	layers := doc["layers"].([]any)
	assert.Equal(t, []any{"5", "9"}, layers[1].(map[string]any)["segments"])
	assert.Len(t, layers[0].(map[string]any)["annotations"], 2)

	// the template can be mapped again with different data
	other, err := s.Map(Single(table.New([]string{"pt", "root_id"}, []table.Row{
		{"pt": vec(1, 1, 1), "root_id": int64(7)},
	})))
	require.NoError(t, err)
	doc, err = other.ToDict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"7"}, doc["layers"].([]any)[1].(map[string]any)["segments"])
}

func TestUnmappedErrorNamesLayer(t *testing.T) {
	s := New(space)
	annos, err := layer.NewAnnotationLayer("cells", nil)
	require.NoError(t, err)
	annos.AddMappedData(&mapper.PointMapper{PointColumn: "pt"}, datamap.New("cells"))
	require.NoError(t, s.AddLayer(annos))

	_, err = s.ToJSON(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cells")
}

func TestSplitFocusSetsPositionAndSelection(t *testing.T) {
	s := New(space)
	seg := layer.NewSegmentationLayer("seg")
	seg.Resolution = []float64{4, 4, 40}
	tbl := table.New([]string{"id", "pt", "team"}, []table.Row{
		{"id": int64(100), "pt": vec(0, 0, 0), "team": "red"},
		{"id": int64(100), "pt": vec(10, 20, 30), "team": "blue"},
	})
	require.NoError(t, seg.AddSplitPoints(&mapper.SplitPointMapper{
		IDColumn: "id", PointColumn: "pt", TeamColumn: "team", Focus: true,
	}, tbl, mapper.Context{ViewerResolution: space.Resolution}))
	require.NoError(t, s.AddLayer(seg))

	doc, err := s.ToDict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{5.0, 10.0, 15.0}, doc["position"])
	assert.Equal(t, map[string]any{"layer": "seg", "visible": true}, doc["selectedLayer"])

	s.Position = []float64{1, 2, 3}
	doc, err = s.ToDict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, doc["position"])
}

type fakeInferrer struct {
	infos map[string]*sourceinfo.Info
	calls int
}

func (f *fakeInferrer) Info(_ context.Context, url string) (*sourceinfo.Info, error) {
	f.calls++
	info, ok := f.infos[url]
	if !ok {
		return nil, errors.New("no info")
	}
	return info, nil
}

func TestInferCoordinates(t *testing.T) {
	inf := &fakeInferrer{infos: map[string]*sourceinfo.Info{
		"precomputed://img": {Type: "image", Resolution: []float64{8, 8, 40}, Bounds: [2][]float64{{0, 0, 0}, {100, 200, 10}}},
	}}
	s := New(coords.Space{})
	s.Inferrer = inf
	require.NoError(t, s.AddLayer(
		layer.NewImageLayer("img").AddSource(layer.Source{URL: "precomputed://img"}),
		layer.NewSegmentationLayer("seg").AddSource(layer.Source{URL: "precomputed://missing"}),
	))

	doc, err := s.ToDict(context.Background())
	require.NoError(t, err)
	dims := doc["dimensions"].(map[string]any)
	require.Contains(t, dims, "x")
	assert.InDelta(t, 8e-9, dims["x"].([]any)[0].(float64), 1e-15)
	assert.Equal(t, []any{50.0, 100.0, 5.0}, doc["position"])
	assert.Equal(t, 2, inf.calls)

	s.InferCoordinates = false
	doc, err = s.ToDict(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc["dimensions"])
	assert.NotContains(t, doc, "position")
}

func TestURLRoundTrip(t *testing.T) {
	s := synapseState(t)
	annos, _ := s.Layer("syn")
	require.NoError(t, annos.(*layer.AnnotationLayer).AddAnnotations(
		&annotation.Point{Base: annotation.Base{Description: "a b&c#?", Tags: []string{"pre"}}, Point: []float64{1, 2, 3}},
	))

	u, err := s.ToURL(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://spelunker.cave-explorer.org/#!"))

	parsed, err := ParseURL(u)
	require.NoError(t, err)
	doc, err := s.ToDict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, parsed)

	u, err = s.ToURL(context.Background(), "https://example.org/ng/")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://example.org/ng/#!%7B"))
}

func TestURLTooLong(t *testing.T) {
	s := New(space)
	annos, err := layer.NewAnnotationLayer("many", nil)
	require.NoError(t, err)
	records := make([]annotation.Record, 20000)
	for i := range records {
		records[i] = &annotation.Point{
			Base:  annotation.Base{Description: strings.Repeat("x", 80)},
			Point: []float64{float64(i), float64(i), float64(i)},
		}
	}
	require.NoError(t, annos.AddAnnotations(records...))
	require.NoError(t, s.AddLayer(annos))

	_, err = s.ToURL(context.Background(), "")
	assert.ErrorIs(t, err, ErrURLTooLong)
}

func TestParseURL(t *testing.T) {
	_, err := ParseURL("https://spelunker.cave-explorer.org/#!middleauth+https://state.example.org/123")
	assert.ErrorIs(t, err, ErrRemoteState)
	assert.Contains(t, err.Error(), "https://state.example.org/123")

	_, err = ParseURL("https://example.org/")
	assert.Error(t, err)

	doc, err := ParseURL(EncodeURL("https://example.org/#", []byte(`{"layout":"3d"}`)))
	require.NoError(t, err)
	assert.Equal(t, "3d", doc["layout"])
}

func TestShorten(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nglstate/api/v1/post", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte("4242"))
	}))
	defer srv.Close()

	s := synapseState(t)
	up := &HTTPUploader{Endpoint: srv.URL + "/nglstate/api/v1", Token: "tok", Client: srv.Client()}
	link, err := s.Shorten(context.Background(), up, "")
	require.NoError(t, err)
	assert.Equal(t, "https://spelunker.cave-explorer.org/#!middleauth+"+srv.URL+"/nglstate/api/v1/4242", link)
	assert.Equal(t, "xy-3d", got["layout"])
}

func TestUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	up := &HTTPUploader{Endpoint: srv.URL}
	_, err := up.Upload(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestParseStateID(t *testing.T) {
	for body, want := range map[string]string{
		`123`:         "123",
		`"abc"`:       "abc",
		`{"id": 77}`:  "77",
		`{"id":"x9"}`: "x9",
		" 55\n":       "55",
	} {
		id, err := parseStateID([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, want, id, body)
	}
	_, err := parseStateID([]byte(`<html>`))
	assert.Error(t, err)
}

func TestSites(t *testing.T) {
	sites := DefaultSites()
	assert.Equal(t, []string{"google", "spelunker"}, sites.Names())
	def, err := sites.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSite, def.Name)
	assert.Error(t, sites.Add(Site{Name: "google", URL: "https://x"}))
	require.NoError(t, sites.Add(Site{Name: "local", URL: "http://localhost:8080/"}))

	assert.Equal(t, "precomputed://middleauth+https://a/b", def.Rewrite("graphene://https://a/b", true))
	assert.Equal(t, "precomputed://gs://a", def.Rewrite("precomputed://gs://a", false))
}

type memUploader struct{ docs [][]byte }

func (m *memUploader) Upload(_ context.Context, doc []byte) (string, error) {
	m.docs = append(m.docs, doc)
	return "https://state.example.org/1", nil
}

func TestLinkFallsBackToUpload(t *testing.T) {
	s := synapseState(t)
	up := &memUploader{}
	link, err := s.Link(context.Background(), "", up)
	require.NoError(t, err)
	assert.Contains(t, link, "#!%7B")
	assert.Empty(t, up.docs)

	annos, _ := s.Layer("syn")
	records := make([]annotation.Record, 20000)
	for i := range records {
		records[i] = &annotation.Point{Base: annotation.Base{Description: strings.Repeat("y", 80)}, Point: []float64{1, 2, 3}}
	}
	require.NoError(t, annos.(*layer.AnnotationLayer).AddAnnotations(records...))
	link, err = s.Link(context.Background(), "", up)
	require.NoError(t, err)
	assert.Equal(t, "https://spelunker.cave-explorer.org/#!middleauth+https://state.example.org/1", link)
	assert.Len(t, up.docs, 1)
}

func TestMapResolvesSegmentsBeforeAnnotations(t *testing.T) {
	s := New(space)
	annos, err := layer.NewAnnotationLayer("syn", nil)
	require.NoError(t, err)
	seg := layer.NewSegmentationLayer("seg")
	require.NoError(t, s.AddLayer(annos, seg))

	var order []string
	record := func(name string) datamap.ApplyFunc {
		return func(target any, _ *table.Table, _ datamap.Env) error {
			order = append(order, name+":"+target.(layer.Layer).Name())
			return nil
		}
	}
	annos.DataMaps().Register(datamap.New("syn"), "annotations", record("annotations"))
	seg.DataMaps().Register(datamap.New("ids").WithPriority(datamap.SourcePriority), "segments", record("segments"))

	tbl := table.New([]string{"root_id"}, nil)
	mapped, err := s.Map(Data{"syn": tbl, "ids": tbl})
	require.NoError(t, err)
	assert.Equal(t, []string{"segments:seg", "annotations:syn"}, order)
	assert.False(t, mapped.Pending())
}

func TestMapSegmentListsResolveFirstByDefault(t *testing.T) {
	s := New(space)
	annos, err := layer.NewAnnotationLayer("syn", nil)
	require.NoError(t, err)
	annos.AddMappedData(&mapper.PointMapper{PointColumn: "pt"}, datamap.New("syn"))
	seg := layer.NewSegmentationLayer("seg")
	seg.AddSelectionData(&mapper.SelectionMapper{DataColumns: []string{"root_id"}}, datamap.New("ids"))
	require.NoError(t, s.AddLayer(annos, seg))

	// the selection fails, so nothing ordered after it may have run
	err = s.MapInPlace(Data{
		"syn": table.New([]string{"pt"}, []table.Row{{"pt": vec(1, 2, 3)}}),
		"ids": table.New([]string{"other"}, []table.Row{{"other": int64(5)}}),
	})
	require.ErrorIs(t, err, mapper.ErrMissingColumn)
	assert.Contains(t, err.Error(), `layer "seg"`)
	assert.Empty(t, annos.Annotations())
	assert.Equal(t, 1, annos.DataMaps().Len())
}
