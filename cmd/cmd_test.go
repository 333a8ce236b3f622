package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpec = `
dimensions:
  resolution: [4, 4, 40]
infer_coordinates: false
layers:
  - name: syn
    type: annotation
    mappers:
      - kind: point
        data: ""
        point: pt
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buildData, buildFormat, buildSite, buildBaseURL = nil, "url", "", ""
	buildNoInfer, buildShorten, servePort, lintStrict = false, false, 0, false
	configPath = filepath.Join(t.TempDir(), "none.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildAndParse(t *testing.T) {
	spec := writeTemp(t, "spec.yaml", testSpec)
	data := writeTemp(t, "pts.csv", "pt\n\"[1, 2, 3]\"\n\"[4, 5, 6]\"\n")

	out, err := run(t, "build", spec, data, "--no-infer", "--site", "google")
	require.NoError(t, err)
	link := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(link, "https://neuroglancer-demo.appspot.com/#!"))

	out, err = run(t, "parse", link)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	layers := doc["layers"].([]any)
	require.Len(t, layers, 1)
	assert.Len(t, layers[0].(map[string]any)["annotations"], 2)
}

func TestBuildJSON(t *testing.T) {
	spec := writeTemp(t, "spec.yaml", testSpec)
	data := writeTemp(t, "pts.json", `{"rows": [{"pt": [1, 2, 3]}]}`)

	out, err := run(t, "build", spec, "--data", data+"#$.rows", "--format", "json", "--no-infer")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "xy-3d", doc["layout"])
}

func TestBuildErrors(t *testing.T) {
	spec := writeTemp(t, "spec.yaml", testSpec)

	_, err := run(t, "build", spec, "--no-infer")
	assert.ErrorContains(t, err, "syn")

	_, err = run(t, "build", spec, writeTemp(t, "pts.csv", "pt\n\"[1, 2, 3]\"\n"), "--no-infer", "--format", "xml")
	assert.ErrorContains(t, err, "xml")

	_, err = run(t, "build", spec, writeTemp(t, "pts.csv", "pt\n\"[1, 2, 3]\"\n"), "--no-infer", "--shorten")
	assert.ErrorContains(t, err, "upload.endpoint")
}

func TestSitesCommand(t *testing.T) {
	out, err := run(t, "sites")
	require.NoError(t, err)
	assert.Contains(t, out, "spelunker*")
	assert.Contains(t, out, "https://neuroglancer-demo.appspot.com/")
}

func TestLintCommand(t *testing.T) {
	spec := writeTemp(t, "spec.yaml", testSpec)

	out, err := run(t, "lint", spec, "pts.csv")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, "lint", spec, "other=pts.csv", "--strict")
	assert.Error(t, err)
	assert.Contains(t, out, `data "other" is not used by any layer`)
}
