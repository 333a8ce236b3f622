// Package table holds the row-oriented tables mappers read from.
//
// Values are whatever a JSON or SQL decoder produces: nil, bool, int64,
// float64, string, []any, map[string]any, plus []float64 and []int64 for
// tables built in Go. Coercion helpers live in values.go.
package table

import "slices"

// Row is a single record keyed by column name.
type Row map[string]any

// Table is an ordered sequence of rows with a known column set.
type Table struct {
	columns []string
	rows    []Row
}

// New builds a table with an explicit column order.
func New(columns []string, rows []Row) *Table {
	return &Table{columns: append([]string(nil), columns...), rows: rows}
}

// FromRows builds a table whose columns are the union of row keys, in order
// of first appearance. Keys within a row are visited in sorted order.
func FromRows(rows []Row) *Table {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return &Table{columns: cols, rows: rows}
}

// FromRecords converts decoded JSON objects into a table. Non-object
// records are skipped.
func FromRecords(records []any) *Table {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		if m, ok := rec.(map[string]any); ok {
			rows = append(rows, Row(m))
		}
	}
	return FromRows(rows)
}

// Columns returns the column names.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return t.columns
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns the i-th row.
func (t *Table) Row(i int) Row {
	return t.rows[i]
}

// Rows returns the underlying rows.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	return t.rows
}

// HasColumn reports whether name is a column of the table.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	return slices.Contains(t.columns, name)
}

// Value returns the value of column in row i, nil when absent.
func (t *Table) Value(i int, column string) any {
	return t.rows[i][column]
}

// Column collects a column's values in row order.
func (t *Table) Column(name string) []any {
	out := make([]any, t.Len())
	for i, r := range t.Rows() {
		out[i] = r[name]
	}
	return out
}
