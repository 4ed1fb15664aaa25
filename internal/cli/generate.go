package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	// Register the sqlite3 driver for database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/mweiss/gridreport/internal/manifest"
	"github.com/mweiss/gridreport/pkg/report"
	"github.com/mweiss/gridreport/pkg/report/sink"
	"github.com/mweiss/gridreport/pkg/source"
	"github.com/mweiss/gridreport/pkg/table"
)

// generateOpts holds the command-line flags for the generate command.
type generateOpts struct {
	manifestPath string // path to the TOML manifest
	dbPath       string // path to the SQLite database file
	output       string // output file override (defaults to the manifest's output)
	noImages     bool   // skip image embedding entirely
}

// generateCommand creates the generate command for building a workbook
// report from a manifest and a database.
func (c *CLI) generateCommand() *cobra.Command {
	opts := generateOpts{
		manifestPath: "report.toml",
	}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the manifest's queries and build the workbook",
		Long: `Run the manifest's queries and build the workbook.

The generate command reads a TOML manifest describing the report: an
introduction, and one sheet per data source with titled SQL queries and
optional pre-rendered images. It runs every query against the database,
lays the results out as styled tables, and writes a single .xlsx file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			return c.runGenerate(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.manifestPath, "manifest", "m", opts.manifestPath, "path to the report manifest")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "path to the SQLite database")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (overrides the manifest)")
	cmd.Flags().BoolVar(&opts.noImages, "no-images", false, "skip image embedding")

	return cmd
}

// runGenerate loads the manifest, runs the queries, and writes the
// workbook.
func (c *CLI) runGenerate(ctx context.Context, opts *generateOpts) error {
	logger := loggerFromContext(ctx)

	m, err := manifest.Load(opts.manifestPath)
	if err != nil {
		return fmt.Errorf("load manifest %s: %w", opts.manifestPath, err)
	}
	logger.Debugf("Loaded manifest: %d sheets", len(m.Sheets))

	sheets, err := m.SourceSheets()
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", opts.dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", opts.dbPath, err)
	}
	defer db.Close()

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Running queries...")
	spinner.Start()

	results, err := source.Load(ctx, db, sheets, logger)
	if err != nil {
		spinner.StopWithError("Query execution failed")
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Loaded %d tables across %d sheets", countTables(results), len(results)))

	builderOpts := []report.Option{report.WithLogger(logger)}
	if opts.noImages {
		builderOpts = append(builderOpts, report.WithImageSink(sink.Disabled{Reason: "image embedding disabled (--no-images)"}))
	}

	b, err := report.New(results, m.Intro, builderOpts...)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = m.Output
	}

	providers := manifestProviders(m)
	if opts.noImages {
		if n := countImages(m); n > 0 {
			printWarning("skipping %d manifest image(s) (--no-images)", n)
		}
		providers = nil
	}

	if err := b.Generate(output, providers); err != nil {
		printError("Report generation failed")
		return err
	}

	printSuccess("Report generated")
	printFile(output)
	printDetail("%d sheets, %d tables", len(results)+1, countTables(results))
	printNextStep("Preview", fmt.Sprintf("%s serve --dir %s", appName, "."))
	return nil
}

// countTables sums the tables across all result sheets.
func countTables(results table.Results) int {
	n := 0
	for _, s := range results {
		n += len(s.Tables)
	}
	return n
}

// countImages sums the images declared across all manifest sheets.
func countImages(m *manifest.Manifest) int {
	n := 0
	for _, s := range m.Sheets {
		n += len(s.Images)
	}
	return n
}

// manifestProviders builds one image provider per sheet that declares
// images. The manifest's images belong below the sheet's last table, so
// the provider returns file references only when invoked for that
// table's title.
func manifestProviders(m *manifest.Manifest) map[string]report.ImageProvider {
	providers := make(map[string]report.ImageProvider)
	for _, s := range m.Sheets {
		if len(s.Images) == 0 || len(s.Queries) == 0 {
			continue
		}

		lastTitle := s.Queries[len(s.Queries)-1].Title
		refs := make([]sink.Renderable, 0, len(s.Images))
		for _, img := range s.Images {
			refs = append(refs, sink.FileRef{
				Path:   m.Resolve(img.Path),
				Width:  img.Width,
				Height: img.Height,
			})
		}

		providers[s.Name] = func(_ table.Table, title string) ([]sink.Renderable, error) {
			if title != lastTitle {
				return nil, nil
			}
			return refs, nil
		}
	}
	if len(providers) == 0 {
		return nil
	}
	return providers
}
