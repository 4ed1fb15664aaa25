// Package sink provides the image-embedding capability for report sheets.
//
// A [Sink] places a rendered raster into a workbook cell. Two variants
// exist: [Picture], the working implementation backed by excelize, and
// [Disabled], a no-op used when image embedding is switched off. The
// variant is chosen once when the report builder is constructed, so the
// placement hot path never probes for availability.
//
// Images enter the system as [Renderable] values: anything that can write
// itself as PNG. [Image] adapts an in-memory image.Image; callers with
// their own rendering pipelines implement Renderable directly.
package sink

import (
	"bytes"
	"image"
	pngcodec "image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/xuri/excelize/v2"

	"github.com/mweiss/gridreport/pkg/errors"
)

// Renderable is an image source that can serialize itself as PNG.
// Renderables returned by image providers may additionally implement
// io.Closer to release transient rendering resources; the layout engine
// closes them after placement.
type Renderable interface {
	RenderPNG(w io.Writer) error
}

// Image adapts an in-memory image to the Renderable interface.
func Image(img image.Image) Renderable { return imageRenderable{img} }

type imageRenderable struct{ img image.Image }

func (r imageRenderable) RenderPNG(w io.Writer) error {
	return pngcodec.Encode(w, r.img)
}

// FileRef is a Renderable referencing a raster on disk. Providers return
// it when the image already exists as a file; the report builder routes
// it through the file-based placement path, which treats a missing file
// as a soft-degrade rather than a failure. Zero Width/Height fall back
// to the layout defaults.
type FileRef struct {
	Path   string
	Width  int
	Height int
}

// RenderPNG streams the referenced file.
func (r FileRef) RenderPNG(w io.Writer) error {
	f, err := os.Open(r.Path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "open image %s", r.Path)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Sink embeds PNG data into a workbook at a given anchor cell.
type Sink interface {
	// Available reports whether this sink can embed images at all.
	Available() bool

	// Embed places the PNG data anchored at cell on the named sheet,
	// displayed at width×height pixels.
	Embed(f *excelize.File, sheet, cell string, data []byte, width, height int) error
}

// Picture is the working sink. Excelize scales pictures relative to their
// native raster size, so Picture resamples the raster to the requested
// pixel box first and embeds the result at scale 1.
type Picture struct{}

// Available always reports true for Picture.
func (Picture) Available() bool { return true }

// Embed decodes data, resizes it to width×height, and anchors it at cell.
func (Picture) Embed(f *excelize.File, sheet, cell string, data []byte, width, height int) error {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode image for %s!%s", sheet, cell)
	}

	resized := imaging.Resize(src, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := pngcodec.Encode(&buf, resized); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode image for %s!%s", sheet, cell)
	}

	err = f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      buf.Bytes(),
		Format:    &excelize.GraphicOptions{},
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "add picture at %s!%s", sheet, cell)
	}
	return nil
}

// Disabled is the no-op sink used when image embedding is unavailable or
// switched off. Embed always fails with IMAGE_UNAVAILABLE; callers on the
// soft-degrade path should check Available before rendering.
type Disabled struct {
	Reason string
}

// Available always reports false for Disabled.
func (Disabled) Available() bool { return false }

// Embed rejects the placement with an IMAGE_UNAVAILABLE error.
func (d Disabled) Embed(_ *excelize.File, sheet, cell string, _ []byte, _, _ int) error {
	reason := d.Reason
	if reason == "" {
		reason = "image embedding disabled"
	}
	return errors.New(errors.ErrCodeImageUnavailable, "%s (at %s!%s)", reason, sheet, cell)
}
