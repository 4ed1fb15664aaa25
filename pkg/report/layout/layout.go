// Package layout places tables and images onto workbook sheets.
//
// The engine linearizes an arbitrary number of variable-sized blocks onto
// a sheet's cell grid by threading a cursor row through successive
// placements: every Place* call writes its block starting at the given
// row and returns the next free row, so callers chain placements
// top-to-bottom without manual bookkeeping. The engine never rewrites a
// previously written row.
//
// Table display names are allocated by the caller-supplied [NameFunc];
// the engine itself carries no naming state, keeping document-wide name
// uniqueness the responsibility of the report builder.
package layout

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"github.com/mweiss/gridreport/pkg/errors"
	"github.com/mweiss/gridreport/pkg/report/sink"
	"github.com/mweiss/gridreport/pkg/table"
)

// tableStyle is the fixed visual style applied to every placed table:
// medium banded rows, no first/last column emphasis, no column stripes.
const tableStyle = "TableStyleMedium9"

// rateSubstring marks columns that receive percentage formatting.
// Matching is case-sensitive and applies per table.
const rateSubstring = "Rate"

// rowsPerImageRow approximates how many pixels of image height fit in one
// sheet row. The resulting occupancy estimate (height/15 + 2) is a
// heuristic the cursor arithmetic is built on, not an exact conversion.
const rowsPerImageRow = 15

// NameFunc allocates the next table display name (e.g. "Table3").
type NameFunc func() string

// Engine writes tables and images into sheets of a single workbook.
type Engine struct {
	f      *excelize.File
	names  NameFunc
	logger *log.Logger
	images sink.Sink

	titleStyle   int
	percentStyle int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for soft-degrade warnings.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSink sets the image-embedding sink. Defaults to [sink.Picture].
func WithSink(s sink.Sink) Option {
	return func(e *Engine) { e.images = s }
}

// New creates an engine writing into f. Table names come from names,
// which must yield a fresh name on every call.
func New(f *excelize.File, names NameFunc, opts ...Option) *Engine {
	e := &Engine{
		f:      f,
		names:  names,
		logger: log.Default(),
		images: sink.Picture{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// Anchor columns
// =============================================================================

// Column identifies an anchor column either by letter ("C") or by 1-based
// index (3). Both forms resolve to the identical cell for the same
// position. The zero value resolves to column A.
type Column struct {
	letter string
	index  int
}

// ColLetter returns the column addressed by a spreadsheet letter.
func ColLetter(s string) Column { return Column{letter: s} }

// ColIndex returns the column addressed by a 1-based index.
func ColIndex(i int) Column { return Column{index: i} }

// Cell resolves the column to a cell name at the given row.
func (c Column) Cell(row int) (string, error) {
	n := c.index
	if c.letter != "" {
		var err error
		n, err = excelize.ColumnNameToNumber(c.letter)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidColumn, err, "column letter %q", c.letter)
		}
	}
	if n < 1 {
		n = 1
	}
	cell, err := excelize.CoordinatesToCellName(n, row)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidColumn, err, "column %d row %d", n, row)
	}
	return cell, nil
}

// =============================================================================
// Table placement
// =============================================================================

// PlaceTable writes tbl into sheet as a titled, styled table block:
// one bold title row at startRow, a header row, the data rows, and a
// blank trailing row. The registered table range spans header and data
// (title excluded). Returns the next free row.
//
// A table with zero data rows is valid: a header-only range is
// registered, which excelize expands by one blank data row. The returned
// cursor already clears that row. A table with no columns cannot be
// placed.
func (e *Engine) PlaceTable(sheet string, tbl table.Table, title string, startRow int) (int, error) {
	if tbl.Empty() {
		return 0, errors.New(errors.ErrCodeInvalidInput, "table %q has no columns", title)
	}

	titleCell, err := excelize.CoordinatesToCellName(1, startRow)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "title cell for %q", title)
	}
	if err := e.f.SetCellValue(sheet, titleCell, title); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "write title %q", title)
	}
	style, err := e.boldTitleStyle()
	if err != nil {
		return 0, err
	}
	if err := e.f.SetCellStyle(sheet, titleCell, titleCell, style); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "style title %q", title)
	}

	headerRow := startRow + 1
	for ci, name := range tbl.Columns {
		cell, err := excelize.CoordinatesToCellName(ci+1, headerRow)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, err, "header cell %d", ci+1)
		}
		if err := e.f.SetCellValue(sheet, cell, name); err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, err, "write header %q", name)
		}
	}

	for ri, row := range tbl.Rows {
		if len(row) != len(tbl.Columns) {
			return 0, errors.New(errors.ErrCodeInvalidInput,
				"table %q row %d has %d values, want %d", title, ri, len(row), len(tbl.Columns))
		}
		for ci, v := range row {
			cell, err := excelize.CoordinatesToCellName(ci+1, headerRow+1+ri)
			if err != nil {
				return 0, errors.Wrap(errors.ErrCodeInternal, err, "data cell %d,%d", ci+1, ri)
			}
			if err := e.f.SetCellValue(sheet, cell, v); err != nil {
				return 0, errors.Wrap(errors.ErrCodeInternal, err, "write cell %s", cell)
			}
		}
	}

	endRow := headerRow + len(tbl.Rows)
	topLeft, err := excelize.CoordinatesToCellName(1, headerRow)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "table range for %q", title)
	}
	bottomRight, err := excelize.CoordinatesToCellName(len(tbl.Columns), endRow)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "table range for %q", title)
	}

	// For a zero-row table this range is a single header row; excelize
	// records it with one extra blank data row (endRow+1). That row stays
	// inside the two-row gap before the next block, so the cursor math
	// below needs no adjustment.
	rowStripes := true
	err = e.f.AddTable(sheet, &excelize.Table{
		Range:             fmt.Sprintf("%s:%s", topLeft, bottomRight),
		Name:              e.names(),
		StyleName:         tableStyle,
		ShowFirstColumn:   false,
		ShowLastColumn:    false,
		ShowRowStripes:    &rowStripes,
		ShowColumnStripes: false,
	})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "register table %q", title)
	}

	if err := e.formatRateColumns(sheet, tbl, headerRow, endRow); err != nil {
		return 0, err
	}

	return endRow + 2, nil
}

// formatRateColumns applies the 0% number format to the data cells of
// every column whose name contains the Rate substring. Title and header
// rows keep their formatting.
func (e *Engine) formatRateColumns(sheet string, tbl table.Table, headerRow, endRow int) error {
	if headerRow+1 > endRow {
		return nil // header-only table, no data cells to format
	}
	for ci, name := range tbl.Columns {
		if !strings.Contains(name, rateSubstring) {
			continue
		}
		style, err := e.percentFormatStyle()
		if err != nil {
			return err
		}
		first, err := excelize.CoordinatesToCellName(ci+1, headerRow+1)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "rate column %q", name)
		}
		last, err := excelize.CoordinatesToCellName(ci+1, endRow)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "rate column %q", name)
		}
		if err := e.f.SetCellStyle(sheet, first, last, style); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "format rate column %q", name)
		}
	}
	return nil
}

// =============================================================================
// Image placement
// =============================================================================

// ImageOption configures a single image placement.
type ImageOption func(*imageConfig)

type imageConfig struct {
	col    Column
	width  int
	height int
}

// AtColumn anchors the image at the given column instead of column A.
func AtColumn(c Column) ImageOption {
	return func(cfg *imageConfig) { cfg.col = c }
}

// WithSize sets the displayed image size in pixels (default 600×400).
func WithSize(width, height int) ImageOption {
	return func(cfg *imageConfig) { cfg.width = width; cfg.height = height }
}

func newImageConfig(opts []ImageOption) imageConfig {
	cfg := imageConfig{col: ColLetter("A"), width: 600, height: 400}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// occupiedRows estimates the vertical space an image of the given pixel
// height consumes, including one blank separator row.
func occupiedRows(height int) int { return height/rowsPerImageRow + 2 }

// PlaceImage renders r to PNG and anchors it at startRow. Returns the
// next free row below the image's estimated occupancy. When the sink is
// unavailable the image is skipped with a warning and the cursor advances
// by exactly one row.
func (e *Engine) PlaceImage(sheet string, r sink.Renderable, startRow int, opts ...ImageOption) (int, error) {
	cfg := newImageConfig(opts)

	if !e.images.Available() {
		e.logger.Warnf("image embedding unavailable, skipping image on %s at row %d", sheet, startRow)
		return startRow + 1, nil
	}

	var buf bytes.Buffer
	if err := r.RenderPNG(&buf); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "render image for %s", sheet)
	}
	cell, err := cfg.col.Cell(startRow)
	if err != nil {
		return 0, err
	}
	if err := e.images.Embed(e.f, sheet, cell, buf.Bytes(), cfg.width, cfg.height); err != nil {
		return 0, err
	}
	return startRow + occupiedRows(cfg.height), nil
}

// PlaceImageFile anchors the PNG at path the same way PlaceImage does.
// A missing file is not an error: it is logged and the cursor advances by
// exactly one row.
func (e *Engine) PlaceImageFile(sheet, path string, startRow int, opts ...ImageOption) (int, error) {
	cfg := newImageConfig(opts)

	if _, err := os.Stat(path); err != nil {
		e.logger.Warnf("image file not found: %s", path)
		return startRow + 1, nil
	}
	if !e.images.Available() {
		e.logger.Warnf("image embedding not available, skipping %s", path)
		return startRow + 1, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeFileNotFound, err, "read image %s", path)
	}
	cell, err := cfg.col.Cell(startRow)
	if err != nil {
		return 0, err
	}
	if err := e.images.Embed(e.f, sheet, cell, data, cfg.width, cfg.height); err != nil {
		return 0, err
	}
	return startRow + occupiedRows(cfg.height), nil
}

// =============================================================================
// Column widths
// =============================================================================

// FitColumns sizes every column touched on the sheet to the longest
// non-empty cell value plus two. A positive limit clamps the width;
// limit <= 0 leaves widths unbounded.
func (e *Engine) FitColumns(sheet string, limit float64) error {
	rows, err := e.f.GetRows(sheet)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "read rows of %s", sheet)
	}

	var widths []int
	for _, row := range rows {
		for ci, val := range row {
			for ci >= len(widths) {
				widths = append(widths, 0)
			}
			if n := utf8.RuneCountInString(val); n > widths[ci] {
				widths[ci] = n
			}
		}
	}

	for ci, max := range widths {
		width := float64(max + 2)
		if limit > 0 && width > limit {
			width = limit
		}
		name, err := excelize.ColumnNumberToName(ci + 1)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "column %d of %s", ci+1, sheet)
		}
		if err := e.f.SetColWidth(sheet, name, name, width); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "set width of %s!%s", sheet, name)
		}
	}
	return nil
}

// =============================================================================
// Styles
// =============================================================================

// boldTitleStyle lazily registers the bold size-12 style for table titles.
// Style IDs are scoped to the workbook the engine writes into.
func (e *Engine) boldTitleStyle() (int, error) {
	if e.titleStyle != 0 {
		return e.titleStyle, nil
	}
	id, err := e.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "create title style")
	}
	e.titleStyle = id
	return id, nil
}

// percentFormatStyle lazily registers the 0% number format (builtin 9).
func (e *Engine) percentFormatStyle() (int, error) {
	if e.percentStyle != 0 {
		return e.percentStyle, nil
	}
	id, err := e.f.NewStyle(&excelize.Style{NumFmt: 9})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "create percent style")
	}
	e.percentStyle = id
	return id, nil
}
