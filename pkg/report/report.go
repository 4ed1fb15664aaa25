// Package report assembles formatted workbook reports from tabular
// results.
//
// A [Builder] owns one workbook for the lifetime of one report: it
// creates the Introduction sheet first, then one sheet per data source in
// input order, placing each source's tables top-to-bottom through the
// layout engine and finishing every sheet with an auto-width pass. The
// builder also owns the document-wide table counter that keeps display
// names (Table1, Table2, ...) unique across all sheets.
//
// Builders are single-threaded by design: every placement's start row
// depends on the previous placement's returned end row.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/mweiss/gridreport/pkg/errors"
	"github.com/mweiss/gridreport/pkg/report/layout"
	"github.com/mweiss/gridreport/pkg/report/sink"
	"github.com/mweiss/gridreport/pkg/table"
)

// introColumnWidth is the fixed width of column A on the Introduction
// sheet.
const introColumnWidth = 100

// imageSheetWidthCap bounds auto-sized column widths on sheets built with
// image providers, keeping image-bearing sheets from growing unreadably
// wide. Sheets built without providers are intentionally uncapped; the
// two paths must not be unified.
const imageSheetWidthCap = 50

// ImageProvider produces zero or more renderable images for a placed
// table. Returning an empty or nil slice places nothing; nil elements
// are skipped. Renderables that implement io.Closer are closed after
// placement.
type ImageProvider func(tbl table.Table, title string) ([]sink.Renderable, error)

// Builder assembles one workbook report.
type Builder struct {
	results table.Results
	intro   []string
	f       *excelize.File
	engine  *layout.Engine
	logger  *log.Logger
	images  sink.Sink

	// counter yields the next table display number; monotonic for the
	// builder's lifetime, shared by every sheet.
	counter int

	// defaultSheet tracks whether excelize's initial blank sheet still
	// needs to be dropped. The workbook must always hold at least one
	// sheet, so the drop happens when the first real sheet is created.
	defaultSheet string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger for warnings and progress messages.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithImageSink sets the image-embedding capability. Pass [sink.Disabled]
// to generate reports without image support.
func WithImageSink(s sink.Sink) Option {
	return func(b *Builder) { b.images = s }
}

// New creates a builder for the given results and introduction lines.
// Sheet names must be non-empty and unique; "Introduction" is reserved.
func New(results table.Results, intro []string, opts ...Option) (*Builder, error) {
	if err := results.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid report input")
	}

	b := &Builder{
		results: results,
		intro:   intro,
		f:       excelize.NewFile(),
		logger:  log.Default(),
		images:  sink.Picture{},
		counter: 1,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.defaultSheet = b.f.GetSheetName(b.f.GetActiveSheetIndex())
	b.engine = layout.New(b.f, b.nextTableName,
		layout.WithLogger(b.logger),
		layout.WithSink(b.images),
	)

	// Workbook identity; visible in the file's document properties.
	if err := b.f.SetDocProps(&excelize.DocProperties{
		Identifier: uuid.NewString(),
		Creator:    "gridreport",
	}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "set document properties")
	}

	return b, nil
}

// File exposes the underlying workbook for embedding callers and tests.
func (b *Builder) File() *excelize.File { return b.f }

// Engine exposes the layout engine for callers placing extra blocks.
func (b *Builder) Engine() *layout.Engine { return b.engine }

// nextTableName allocates the next document-unique display name.
func (b *Builder) nextTableName() string {
	name := fmt.Sprintf("Table%d", b.counter)
	b.counter++
	return name
}

// newSheet creates a named sheet and drops the workbook's initial blank
// sheet the first time around.
func (b *Builder) newSheet(name string) error {
	if _, err := b.f.NewSheet(name); err != nil {
		return errors.Wrap(errors.ErrCodeSheetExists, err, "create sheet %q", name)
	}
	if b.defaultSheet != "" && b.defaultSheet != name {
		if err := b.f.DeleteSheet(b.defaultSheet); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "drop default sheet")
		}
	}
	b.defaultSheet = ""
	return nil
}

// BuildIntroduction creates the Introduction sheet as the first sheet of
// the workbook: a bold size-14 title cell followed by one row per intro
// line, with column A fixed at width 100. Calling it twice writes two
// title blocks; callers are expected to call it once.
func (b *Builder) BuildIntroduction() error {
	if err := b.newSheet(table.IntroductionSheet); err != nil {
		return err
	}

	// The introduction is always the first sheet, even when result sheets
	// were built before it.
	if names := b.f.GetSheetList(); len(names) > 1 && names[0] != table.IntroductionSheet {
		if err := b.f.MoveSheet(table.IntroductionSheet, names[0]); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "reorder introduction sheet")
		}
	}

	if err := b.f.SetCellValue(table.IntroductionSheet, "A1", table.IntroductionSheet); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write introduction title")
	}
	style, err := b.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create introduction style")
	}
	if err := b.f.SetCellStyle(table.IntroductionSheet, "A1", "A1", style); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "style introduction title")
	}

	for i, line := range b.intro {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "introduction line %d", i)
		}
		if err := b.f.SetCellValue(table.IntroductionSheet, cell, line); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "write introduction line %d", i)
		}
	}

	if err := b.f.SetColWidth(table.IntroductionSheet, "A", "A", introColumnWidth); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "set introduction column width")
	}
	return nil
}

// BuildResultSheets creates one sheet per data source in input order and
// places every table top-to-bottom, then auto-sizes the touched columns
// without a width cap.
func (b *Builder) BuildResultSheets() error {
	return b.buildSheets(nil, 0)
}

// BuildResultSheetsWithImages is BuildResultSheets plus per-table image
// embedding: after each table, the sheet's provider (if any) is invoked
// and each returned image is placed below the table. Provider or
// placement failures are downgraded to warnings identifying the sheet and
// table; the rest of the document is unaffected. Column widths on these
// sheets are capped at 50.
func (b *Builder) BuildResultSheetsWithImages(providers map[string]ImageProvider) error {
	return b.buildSheets(providers, imageSheetWidthCap)
}

func (b *Builder) buildSheets(providers map[string]ImageProvider, widthCap float64) error {
	for _, src := range b.results {
		if err := b.newSheet(src.Name); err != nil {
			return err
		}

		row := 1
		for _, tt := range src.Tables {
			next, err := b.engine.PlaceTable(src.Name, tt.Table, tt.Title, row)
			if err != nil {
				return err
			}
			row = next

			if provider, ok := providers[src.Name]; ok {
				row = b.placeProviderImages(src.Name, provider, tt, row)
			}
		}

		if err := b.engine.FitColumns(src.Name, widthCap); err != nil {
			return err
		}
	}
	return nil
}

// placeProviderImages runs the provider for one placed table and embeds
// its images. Failures are confined to this (sheet, title) pair: they are
// logged and the cursor is returned unchanged past the last successful
// placement, leaving already-written rows intact.
func (b *Builder) placeProviderImages(sheet string, provider ImageProvider, tt table.TitledTable, row int) int {
	images, err := provider(tt.Table, tt.Title)
	if err != nil {
		b.logger.Warnf("failed to add images for %s/%s: %v", sheet, tt.Title, err)
		return row
	}

	for _, img := range images {
		if img == nil {
			continue
		}
		next, err := b.placeOne(sheet, img, row)
		if err != nil {
			b.logger.Warnf("failed to add images for %s/%s: %v", sheet, tt.Title, err)
			b.closeRenderable(img)
			return row
		}
		row = next + 1 // blank row below the image
		b.closeRenderable(img)
	}
	return row
}

// placeOne embeds a single provider image. File references go through
// the file-based placement path so a missing file degrades softly
// instead of failing the (sheet, title) pair.
func (b *Builder) placeOne(sheet string, img sink.Renderable, row int) (int, error) {
	if ref, ok := img.(sink.FileRef); ok {
		var opts []layout.ImageOption
		if ref.Width > 0 && ref.Height > 0 {
			opts = append(opts, layout.WithSize(ref.Width, ref.Height))
		}
		return b.engine.PlaceImageFile(sheet, ref.Path, row, opts...)
	}
	return b.engine.PlaceImage(sheet, img, row)
}

// closeRenderable releases a renderable's transient resources if it
// exposes any.
func (b *Builder) closeRenderable(r sink.Renderable) {
	if c, ok := r.(io.Closer); ok {
		if err := c.Close(); err != nil {
			b.logger.Debugf("closing renderable: %v", err)
		}
	}
}

// Generate builds the complete workbook and writes it to path: the
// Introduction sheet, then the result sheets (with images when providers
// are supplied), then serialization. Success is logged only after the
// file is fully written.
func (b *Builder) Generate(path string, providers map[string]ImageProvider) error {
	if err := b.BuildIntroduction(); err != nil {
		return err
	}

	var err error
	if len(providers) > 0 {
		err = b.BuildResultSheetsWithImages(providers)
	} else {
		err = b.BuildResultSheets()
	}
	if err != nil {
		return err
	}

	if err := b.f.SaveAs(path); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "save workbook to %s", path)
	}
	b.logger.Infof("workbook successfully saved to %s", path)
	return nil
}

// Close releases the underlying workbook resources. Only needed when the
// builder is abandoned without calling Generate.
func (b *Builder) Close() error {
	return b.f.Close()
}
