// Package source materializes report input from a SQL database.
//
// The original consumers of this tool feed it query results: one sheet
// per SQL file, one table per query title. Load runs the configured
// queries in order against any database/sql handle and produces the
// ordered [table.Results] the report builder expects. The CLI wires this
// to SQLite; any driver works.
package source

import (
	"context"
	"database/sql"

	"github.com/charmbracelet/log"

	"github.com/mweiss/gridreport/pkg/errors"
	"github.com/mweiss/gridreport/pkg/table"
)

// Query is one titled query contributing a table to its sheet.
type Query struct {
	Title string
	SQL   string
}

// Sheet groups the queries of one result sheet.
type Sheet struct {
	Name    string
	Queries []Query
}

// Load executes every query in order and collects the results. A failing
// query aborts the load with a QUERY_FAILED error naming the sheet and
// title; partial results are not returned.
func Load(ctx context.Context, db *sql.DB, sheets []Sheet, logger *log.Logger) (table.Results, error) {
	if logger == nil {
		logger = log.Default()
	}

	results := make(table.Results, 0, len(sheets))
	for _, s := range sheets {
		data := table.SheetData{Name: s.Name}
		for _, q := range s.Queries {
			tbl, err := runQuery(ctx, db, q.SQL)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeQueryFailed, err, "query %q on sheet %q", q.Title, s.Name)
			}
			logger.Debugf("loaded %d rows for %s/%s", len(tbl.Rows), s.Name, q.Title)
			data.Tables = append(data.Tables, table.TitledTable{Title: q.Title, Table: tbl})
		}
		results = append(results, data)
	}
	return results, nil
}

// runQuery executes one statement and scans the full result set. Column
// order follows the driver's result order; []byte values are normalized
// to strings so text columns render as text regardless of driver.
func runQuery(ctx context.Context, db *sql.DB, query string) (table.Table, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return table.Table{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return table.Table{}, err
	}

	tbl := table.Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return table.Table{}, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		tbl.Rows = append(tbl.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return table.Table{}, err
	}
	return tbl, nil
}
