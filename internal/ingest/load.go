package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/ngstate/internal/table"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Input names one table file and how to read rows out of it.
type Input struct {
	// Key is the DataMap key the table resolves.
	Key  string `yaml:"key" json:"key"`
	Path string `yaml:"path" json:"path"`
	// Format overrides detection from the file extension: json, ndjson,
	// csv, tsv or sqlite.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	// Selector is a JSONPath picking the row array out of a JSON document.
	Selector string `yaml:"selector,omitempty" json:"selector,omitempty"`
	// Table and Query select rows from a SQLite database.
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
}

// LoadTable reads one input. Files ending in .gz or .zst are decompressed
// first.
func LoadTable(in Input) (*table.Table, error) {
	format := in.Format
	if format == "" {
		format = detectFormat(in.Path)
	}
	if format == "sqlite" {
		return LoadSQLite(in.Path, in.Table, in.Query)
	}

	data, err := readFile(in.Path)
	if err != nil {
		return nil, err
	}
	var t *table.Table
	switch format {
	case "json":
		t, err = ParseJSON(data, in.Selector)
	case "ndjson":
		t, err = ParseNDJSON(data)
	case "csv":
		t, err = ParseCSV(bytes.NewReader(data), ',')
	case "tsv":
		t, err = ParseCSV(bytes.NewReader(data), '\t')
	default:
		return nil, fmt.Errorf("%s: unsupported table format %q", in.Path, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Path, err)
	}
	return t, nil
}

// LoadTables reads every input into a map keyed by Input.Key.
func LoadTables(inputs []Input) (map[string]*table.Table, error) {
	out := make(map[string]*table.Table, len(inputs))
	for _, in := range inputs {
		if _, dup := out[in.Key]; dup {
			return nil, fmt.Errorf("duplicate data key %q", in.Key)
		}
		t, err := LoadTable(in)
		if err != nil {
			return nil, fmt.Errorf("data %q: %w", in.Key, err)
		}
		out[in.Key] = t
	}
	return out, nil
}

// ParseInput parses a command-line data argument of the form
// [key=]path[#selector]. A bare path uses the empty key.
func ParseInput(arg string) Input {
	var in Input
	if k, rest, ok := strings.Cut(arg, "="); ok && !strings.ContainsAny(k, `/\# `) {
		in.Key, arg = k, rest
	}
	if p, sel, ok := strings.Cut(arg, "#"); ok {
		arg = p
		switch detectFormat(p) {
		case "sqlite":
			if strings.HasPrefix(strings.ToUpper(sel), "SELECT") {
				in.Query = sel
			} else {
				in.Table = sel
			}
		default:
			in.Selector = sel
		}
	}
	in.Path = arg
	return in
}

func detectFormat(path string) string {
	name := strings.ToLower(path)
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".zst")
	switch filepath.Ext(name) {
	case ".json":
		return "json"
	case ".ndjson", ".jsonl":
		return "ndjson"
	case ".csv":
		return "csv"
	case ".tsv":
		return "tsv"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	return ""
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
