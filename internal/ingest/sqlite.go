package ingest

import (
	"database/sql"
	"fmt"

	"github.com/agentic-research/ngstate/internal/table"
	_ "modernc.org/sqlite"
)

// LoadSQLite reads rows from a SQLite database. With no query it selects
// every row of tableName; with neither, the database must hold exactly one
// table. TEXT cells holding JSON arrays are decoded by the mappers.
func LoadSQLite(dbPath, tableName, query string) (*table.Table, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	if query == "" {
		if tableName == "" {
			if tableName, err = onlyTable(db); err != nil {
				return nil, fmt.Errorf("%s: %w", dbPath, err)
			}
		}
		query = fmt.Sprintf("SELECT * FROM %q", tableName)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", dbPath, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	var out []table.Row
	cells := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(table.Row, len(columns))
		for i, name := range columns {
			if b, ok := cells[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = cells[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return table.New(columns, out), nil
}

func onlyTable(db *sql.DB) (string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(names) != 1 {
		return "", fmt.Errorf("found %d tables %v, name one", len(names), names)
	}
	return names[0], nil
}
