package cli

import (
	"testing"

	"github.com/mweiss/gridreport/internal/manifest"
	"github.com/mweiss/gridreport/pkg/report/sink"
	"github.com/mweiss/gridreport/pkg/table"
)

func TestManifestProviders(t *testing.T) {
	m := &manifest.Manifest{
		Sheets: []manifest.Sheet{
			{
				Name: "Sales",
				Queries: []manifest.Query{
					{Title: "Revenue", SQL: "SELECT 1"},
					{Title: "Top Products", SQL: "SELECT 2"},
				},
				Images: []manifest.Image{
					{Path: "charts/revenue.png", Width: 300, Height: 200},
				},
			},
			{
				Name: "Regions",
				Queries: []manifest.Query{
					{Title: "Breakdown", SQL: "SELECT 3"},
				},
			},
		},
	}

	providers := manifestProviders(m)
	if len(providers) != 1 {
		t.Fatalf("len(providers) = %d, want 1 (only sheets with images)", len(providers))
	}

	provider, ok := providers["Sales"]
	if !ok {
		t.Fatal("no provider registered for Sales")
	}

	// Images belong below the sheet's last table, so earlier titles yield
	// nothing.
	imgs, err := provider(table.Table{}, "Revenue")
	if err != nil {
		t.Fatalf("provider(Revenue) error = %v", err)
	}
	if len(imgs) != 0 {
		t.Errorf("provider(Revenue) returned %d images, want 0", len(imgs))
	}

	imgs, err = provider(table.Table{}, "Top Products")
	if err != nil {
		t.Fatalf("provider(Top Products) error = %v", err)
	}
	if len(imgs) != 1 {
		t.Fatalf("provider(Top Products) returned %d images, want 1", len(imgs))
	}

	ref, ok := imgs[0].(sink.FileRef)
	if !ok {
		t.Fatalf("provider returned %T, want sink.FileRef", imgs[0])
	}
	if ref.Path != "charts/revenue.png" || ref.Width != 300 || ref.Height != 200 {
		t.Errorf("ref = %+v, want charts/revenue.png at 300x200", ref)
	}
}

func TestManifestProvidersEmpty(t *testing.T) {
	m := &manifest.Manifest{
		Sheets: []manifest.Sheet{
			{Name: "A", Queries: []manifest.Query{{Title: "Q", SQL: "SELECT 1"}}},
		},
	}
	if providers := manifestProviders(m); providers != nil {
		t.Errorf("manifestProviders() = %v, want nil when no sheet has images", providers)
	}
}

func TestCountImages(t *testing.T) {
	m := &manifest.Manifest{
		Sheets: []manifest.Sheet{
			{Name: "A", Images: make([]manifest.Image, 2)},
			{Name: "B"},
			{Name: "C", Images: make([]manifest.Image, 1)},
		},
	}
	if got := countImages(m); got != 3 {
		t.Errorf("countImages() = %d, want 3", got)
	}
}

func TestCountTables(t *testing.T) {
	results := table.Results{
		{Name: "A", Tables: make([]table.TitledTable, 2)},
		{Name: "B", Tables: make([]table.TitledTable, 3)},
	}
	if got := countTables(results); got != 5 {
		t.Errorf("countTables() = %d, want 5", got)
	}
}
