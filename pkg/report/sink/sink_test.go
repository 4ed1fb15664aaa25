package sink

import (
	"bytes"
	"image"
	"image/color"
	pngcodec "image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mweiss/gridreport/pkg/errors"
)

// testPNG returns an encoded solid-color PNG of the given size.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := pngcodec.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestImageRenderable(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := Image(img).RenderPNG(&buf); err != nil {
		t.Fatalf("RenderPNG() error = %v", err)
	}

	decoded, err := pngcodec.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if got := decoded.Bounds().Dx(); got != 4 {
		t.Errorf("decoded width = %d, want 4", got)
	}
}

func TestFileRefRenderPNG(t *testing.T) {
	data := testPNG(t, 6, 6)
	path := filepath.Join(t.TempDir(), "chart.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test image: %v", err)
	}

	var buf bytes.Buffer
	if err := (FileRef{Path: path}).RenderPNG(&buf); err != nil {
		t.Fatalf("RenderPNG() error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Error("RenderPNG() should stream the file contents unchanged")
	}
}

func TestFileRefMissingFile(t *testing.T) {
	ref := FileRef{Path: filepath.Join(t.TempDir(), "absent.png")}
	err := ref.RenderPNG(io.Discard)
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("RenderPNG() error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestPictureEmbed(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	data := testPNG(t, 20, 10)
	if err := (Picture{}).Embed(f, "Sheet1", "A1", data, 600, 400); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	pics, err := f.GetPictures("Sheet1", "A1")
	if err != nil {
		t.Fatalf("GetPictures() error = %v", err)
	}
	if len(pics) != 1 {
		t.Fatalf("GetPictures() returned %d pictures, want 1", len(pics))
	}

	// The embedded raster must match the requested pixel box, not the
	// native size of the source image.
	embedded, err := pngcodec.Decode(bytes.NewReader(pics[0].File))
	if err != nil {
		t.Fatalf("embedded picture is not valid PNG: %v", err)
	}
	if w := embedded.Bounds().Dx(); w != 600 {
		t.Errorf("embedded width = %d, want 600", w)
	}
	if h := embedded.Bounds().Dy(); h != 400 {
		t.Errorf("embedded height = %d, want 400", h)
	}
}

func TestPictureEmbedRejectsGarbage(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	err := (Picture{}).Embed(f, "Sheet1", "A1", []byte("not an image"), 100, 100)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Embed() error = %v, want INVALID_INPUT", err)
	}
}

func TestDisabled(t *testing.T) {
	d := Disabled{Reason: "image embedding requires the picture sink"}
	if d.Available() {
		t.Error("Disabled.Available() = true, want false")
	}

	f := excelize.NewFile()
	defer f.Close()

	err := d.Embed(f, "Sheet1", "A1", nil, 600, 400)
	if !errors.Is(err, errors.ErrCodeImageUnavailable) {
		t.Errorf("Embed() error = %v, want IMAGE_UNAVAILABLE", err)
	}

	pics, _ := f.GetPictures("Sheet1", "A1")
	if len(pics) != 0 {
		t.Errorf("Disabled sink added %d pictures, want 0", len(pics))
	}
}
