// Package table defines the tabular input model for report generation.
//
// A report is fed from an ordered collection of sheets, each holding an
// ordered collection of titled tables. Order is significant everywhere:
// sheets appear in the workbook in input order, tables are placed
// top-to-bottom in input order, and columns are written left-to-right in
// declaration order. Go maps do not preserve insertion order, so the model
// uses slices with explicit name/title fields instead of nested maps.
package table

import (
	"fmt"
	"strings"
)

// IntroductionSheet is the reserved name of the leading workbook sheet.
const IntroductionSheet = "Introduction"

// Table is a single block of tabular data with a uniform column set.
// Rows are row-major and aligned to Columns; a table with zero rows is
// valid and renders as a header-only block.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the table has no columns at all.
// A table without columns cannot be placed; a table without rows can.
func (t Table) Empty() bool { return len(t.Columns) == 0 }

// Cell returns the stringified value at (row, col), both zero-based.
// Nil values render as the empty string.
func (t Table) Cell(row, col int) string {
	v := t.Rows[row][col]
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// TitledTable pairs a table with the title displayed above it.
type TitledTable struct {
	Title string
	Table Table
}

// SheetData is one data source: a named sheet and its tables in
// placement order.
type SheetData struct {
	Name   string
	Tables []TitledTable
}

// Results is the full report input, in sheet order.
type Results []SheetData

// Validate checks the structural constraints on the input mapping:
// sheet names must be non-empty, unique, and must not collide with the
// reserved introduction sheet. Misaligned rows inside a table are not
// checked here; they surface as faults during placement.
func (r Results) Validate() error {
	seen := make(map[string]struct{}, len(r))
	for _, s := range r {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sheet name must be non-empty")
		}
		if s.Name == IntroductionSheet {
			return fmt.Errorf("sheet name %q is reserved", IntroductionSheet)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate sheet name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// Names returns the sheet names in input order.
func (r Results) Names() []string {
	names := make([]string, len(r))
	for i, s := range r {
		names[i] = s.Name
	}
	return names
}
