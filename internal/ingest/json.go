package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"

	"github.com/agentic-research/ngstate/internal/table"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ParseJSON builds a table from a JSON document. The rows are the array at
// selector (or the document itself): an array of objects, or an object of
// equal-length column arrays. Integers decode as int64 so segment ids stay
// exact.
func ParseJSON(data []byte, selector string) (*table.Table, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if selector != "" {
		x, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
		}
		results := x.Get(root)
		switch len(results) {
		case 0:
			return nil, fmt.Errorf("jsonpath '%s' matched nothing", selector)
		case 1:
			root = results[0]
		default:
			root = results
		}
	}
	return tableFromValue(root)
}

// ParseNDJSON builds a table from one JSON object per line. Blank lines are
// skipped.
func ParseNDJSON(data []byte) (*table.Table, error) {
	var records []any
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		v, err := oj.Parse(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, ok := v.(map[string]any); !ok {
			return nil, fmt.Errorf("line %d: expected an object", line)
		}
		records = append(records, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan ndjson: %w", err)
	}
	return table.FromRecords(records), nil
}

func tableFromValue(v any) (*table.Table, error) {
	switch v := v.(type) {
	case []any:
		for i, r := range v {
			if _, ok := r.(map[string]any); !ok {
				return nil, fmt.Errorf("row %d is %T, not an object", i, r)
			}
		}
		return table.FromRecords(v), nil
	case map[string]any:
		return columnar(v)
	}
	return nil, errors.New("json rows must be an array of objects or an object of columns")
}

// columnar turns {"a": [1, 2], "b": [3, 4]} into rows.
func columnar(cols map[string]any) (*table.Table, error) {
	n := -1
	lists := make(map[string][]any, len(cols))
	for name, c := range cols {
		list, ok := c.([]any)
		if !ok {
			return nil, fmt.Errorf("column %q is %T, not an array", name, c)
		}
		if n >= 0 && len(list) != n {
			return nil, fmt.Errorf("column %q has %d values, want %d", name, len(list), n)
		}
		n = len(list)
		lists[name] = list
	}
	names := sortedKeys(lists)
	rows := make([]table.Row, max(n, 0))
	for i := range rows {
		row := make(table.Row, len(names))
		for _, name := range names {
			row[name] = lists[name][i]
		}
		rows[i] = row
	}
	return table.New(names, rows), nil
}
