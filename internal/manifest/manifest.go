// Package manifest defines the TOML report definition consumed by the
// CLI.
//
// A manifest names the output file, the introduction text, and one
// [[sheet]] block per result sheet. Each sheet lists titled queries
// (inline SQL or a .sql file next to the manifest) and optionally
// pre-rendered images appended below the sheet's tables:
//
//	output = "report.xlsx"
//	intro = ["Quarterly report", "Generated by gridreport"]
//
//	[[sheet]]
//	name = "Analysis"
//
//	  [[sheet.query]]
//	  title = "Category Data"
//	  sql = "SELECT category, amount, rate FROM sales"
//
//	  [[sheet.image]]
//	  path = "charts/categories.png"
package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mweiss/gridreport/pkg/errors"
	"github.com/mweiss/gridreport/pkg/source"
	"github.com/mweiss/gridreport/pkg/table"
)

// DefaultOutput is used when the manifest does not name an output file.
const DefaultOutput = "report.xlsx"

// Manifest is a parsed report definition.
type Manifest struct {
	Output string   `toml:"output"`
	Intro  []string `toml:"intro"`
	Sheets []Sheet  `toml:"sheet"`

	// dir is the manifest's directory; query files and image paths are
	// resolved relative to it.
	dir string
}

// Sheet defines one result sheet.
type Sheet struct {
	Name    string  `toml:"name"`
	Queries []Query `toml:"query"`
	Images  []Image `toml:"image"`
}

// Query defines one titled table. Exactly one of SQL and File is set.
type Query struct {
	Title string `toml:"title"`
	SQL   string `toml:"sql"`
	File  string `toml:"file"`
}

// Image references a pre-rendered raster appended below the sheet's
// tables. Zero width/height fall back to the layout defaults (600×400).
type Image struct {
	Path   string `toml:"path"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read manifest %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse manifest")
	}
	if m.Output == "" {
		m.Output = DefaultOutput
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural constraints beyond what TOML decoding
// enforces.
func (m *Manifest) Validate() error {
	if len(m.Sheets) == 0 {
		return errors.New(errors.ErrCodeInvalidManifest, "manifest defines no sheets")
	}

	seen := make(map[string]struct{}, len(m.Sheets))
	for _, s := range m.Sheets {
		if strings.TrimSpace(s.Name) == "" {
			return errors.New(errors.ErrCodeInvalidManifest, "sheet name must be non-empty")
		}
		if s.Name == table.IntroductionSheet {
			return errors.New(errors.ErrCodeInvalidManifest, "sheet name %q is reserved", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return errors.New(errors.ErrCodeInvalidManifest, "duplicate sheet name %q", s.Name)
		}
		seen[s.Name] = struct{}{}

		if len(s.Queries) == 0 {
			return errors.New(errors.ErrCodeInvalidManifest, "sheet %q has no queries", s.Name)
		}
		for _, q := range s.Queries {
			if strings.TrimSpace(q.Title) == "" {
				return errors.New(errors.ErrCodeInvalidManifest, "sheet %q has a query without a title", s.Name)
			}
			if (q.SQL == "") == (q.File == "") {
				return errors.New(errors.ErrCodeInvalidManifest,
					"query %q on sheet %q must set exactly one of sql and file", q.Title, s.Name)
			}
		}
		for _, img := range s.Images {
			if strings.TrimSpace(img.Path) == "" {
				return errors.New(errors.ErrCodeInvalidManifest, "sheet %q has an image without a path", s.Name)
			}
		}
	}
	return nil
}

// SourceSheets resolves the manifest into query specs for the loader,
// reading any referenced .sql files relative to the manifest directory.
func (m *Manifest) SourceSheets() ([]source.Sheet, error) {
	sheets := make([]source.Sheet, 0, len(m.Sheets))
	for _, s := range m.Sheets {
		src := source.Sheet{Name: s.Name}
		for _, q := range s.Queries {
			stmt := q.SQL
			if q.File != "" {
				data, err := os.ReadFile(m.Resolve(q.File))
				if err != nil {
					return nil, errors.Wrap(errors.ErrCodeFileNotFound, err,
						"query file for %q on sheet %q", q.Title, s.Name)
				}
				stmt = string(data)
			}
			src.Queries = append(src.Queries, source.Query{Title: q.Title, SQL: stmt})
		}
		sheets = append(sheets, src)
	}
	return sheets, nil
}

// Resolve joins a manifest-relative path with the manifest directory.
// Absolute paths pass through unchanged.
func (m *Manifest) Resolve(path string) string {
	if filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}
