package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mweiss/gridreport/pkg/errors"
)

const validManifest = `
output = "quarterly.xlsx"
intro = ["Quarterly report", "All figures in EUR"]

[[sheet]]
name = "Analysis"

  [[sheet.query]]
  title = "Category Data"
  sql = "SELECT category, amount, rate FROM sales"

  [[sheet.image]]
  path = "charts/categories.png"
  width = 300
  height = 200

[[sheet]]
name = "Revenue"

  [[sheet.query]]
  title = "By Region"
  file = "revenue.sql"
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(validManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if m.Output != "quarterly.xlsx" {
		t.Errorf("Output = %q, want quarterly.xlsx", m.Output)
	}
	if len(m.Intro) != 2 {
		t.Errorf("len(Intro) = %d, want 2", len(m.Intro))
	}
	if len(m.Sheets) != 2 {
		t.Fatalf("len(Sheets) = %d, want 2", len(m.Sheets))
	}
	if m.Sheets[0].Name != "Analysis" || m.Sheets[1].Name != "Revenue" {
		t.Errorf("sheet order = %q, %q; want Analysis, Revenue", m.Sheets[0].Name, m.Sheets[1].Name)
	}
	if img := m.Sheets[0].Images[0]; img.Path != "charts/categories.png" || img.Width != 300 {
		t.Errorf("image = %+v, want charts/categories.png at 300 wide", img)
	}
}

func TestParseDefaultsOutput(t *testing.T) {
	m, err := Parse([]byte(`
[[sheet]]
name = "A"
  [[sheet.query]]
  title = "Q"
  sql = "SELECT 1"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.Output != DefaultOutput {
		t.Errorf("Output = %q, want %q", m.Output, DefaultOutput)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "no sheets",
			doc:  `output = "x.xlsx"`,
		},
		{
			name: "empty sheet name",
			doc: `
[[sheet]]
name = ""
  [[sheet.query]]
  title = "Q"
  sql = "SELECT 1"
`,
		},
		{
			name: "reserved sheet name",
			doc: `
[[sheet]]
name = "Introduction"
  [[sheet.query]]
  title = "Q"
  sql = "SELECT 1"
`,
		},
		{
			name: "duplicate sheet names",
			doc: `
[[sheet]]
name = "A"
  [[sheet.query]]
  title = "Q"
  sql = "SELECT 1"
[[sheet]]
name = "A"
  [[sheet.query]]
  title = "Q"
  sql = "SELECT 1"
`,
		},
		{
			name: "sheet without queries",
			doc: `
[[sheet]]
name = "A"
`,
		},
		{
			name: "query with both sql and file",
			doc: `
[[sheet]]
name = "A"
  [[sheet.query]]
  title = "Q"
  sql = "SELECT 1"
  file = "q.sql"
`,
		},
		{
			name: "query with neither sql nor file",
			doc: `
[[sheet]]
name = "A"
  [[sheet.query]]
  title = "Q"
`,
		},
		{
			name: "not toml",
			doc:  `{{{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, errors.ErrCodeInvalidManifest) {
				t.Errorf("Parse() error = %v, want INVALID_MANIFEST", err)
			}
		})
	}
}

func TestSourceSheetsResolvesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "revenue.sql"), []byte("SELECT region FROM revenue"), 0o644); err != nil {
		t.Fatalf("write query file: %v", err)
	}
	path := filepath.Join(dir, "report.toml")
	if err := os.WriteFile(path, []byte(validManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sheets, err := m.SourceSheets()
	if err != nil {
		t.Fatalf("SourceSheets() error = %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("len(sheets) = %d, want 2", len(sheets))
	}
	if got := sheets[1].Queries[0].SQL; got != "SELECT region FROM revenue" {
		t.Errorf("resolved query = %q, want file contents", got)
	}
}

func TestSourceSheetsMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.toml")
	if err := os.WriteFile(path, []byte(validManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err = m.SourceSheets()
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("SourceSheets() error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestResolve(t *testing.T) {
	m := &Manifest{dir: "/data/reports"}

	if got := m.Resolve("charts/a.png"); got != filepath.Join("/data/reports", "charts/a.png") {
		t.Errorf("Resolve() = %q", got)
	}
	if got := m.Resolve("/abs/a.png"); got != "/abs/a.png" {
		t.Errorf("Resolve() = %q, want absolute path unchanged", got)
	}
}
