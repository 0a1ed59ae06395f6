package mupdf

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/wudi/slidekit/container"
	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/security"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	data := buildPDF(
		"<< /Type /Catalog /Pages 2 0 R /PageLabels << /Nums [0 << /S /D /St 5 >>] >> >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 200 100] >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Page /Parent 2 0 R /CropBox [10 10 110 60] /Rotate 90 >>",
	)
	path := filepath.Join(t.TempDir(), "deck.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func openFixture(t *testing.T, limits security.Limits) *Document {
	t.Helper()
	doc, err := Open(writeFixture(t), limits)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return doc
}

func TestOpenReadsGeometryAndLabels(t *testing.T) {
	doc := openFixture(t, security.Limits{})
	if n := doc.PageCount(); n != 2 {
		t.Fatalf("page count %d", n)
	}
	if r, err := doc.PageBounds(0); err != nil || r != (coords.Rect{X1: 200, Y1: 100}) {
		t.Fatalf("page 0 bounds %+v %v", r, err)
	}
	if r, err := doc.PageBounds(1); err != nil || r != (coords.Rect{X1: 50, Y1: 100}) {
		t.Fatalf("page 1 bounds %+v %v", r, err)
	}
	if _, err := doc.PageBounds(2); err == nil {
		t.Fatalf("expected out of range error")
	}
	ranges, err := doc.PageLabels()
	if err != nil || len(ranges) != 1 || ranges[0].First != 5 {
		t.Fatalf("labels %+v %v", ranges, err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Opener{}.Open(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	var oe *container.OpenError
	if !errors.As(err, &oe) || oe.Op != "load" {
		t.Fatalf("expected load OpenError, got %v", err)
	}
}

func TestRasterize(t *testing.T) {
	doc := openFixture(t, security.Limits{})
	ctx := context.Background()

	img, err := doc.Rasterize(ctx, 0, container.RasterOptions{ZoomX: 1, ZoomY: 1})
	if err != nil {
		t.Fatalf("full page: %v", err)
	}
	if img.Bounds().Size() != (image.Point{X: 200, Y: 100}) {
		t.Fatalf("full page size %v", img.Bounds())
	}

	img, err = doc.Rasterize(ctx, 0, container.RasterOptions{ZoomX: 2, ZoomY: 2, Clip: &coords.Rect{X1: 100, Y1: 50}})
	if err != nil {
		t.Fatalf("clipped: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 200, 100) {
		t.Fatalf("clipped size %v", img.Bounds())
	}

	if _, err := doc.Rasterize(ctx, 0, container.RasterOptions{ZoomX: 1, ZoomY: 1, Clip: &coords.Rect{X0: 300, Y0: 0, X1: 400, Y1: 50}}); err == nil {
		t.Fatalf("expected error for clip outside the page")
	}
}

func TestRasterizeSmallClipStaysWithinPixelLimit(t *testing.T) {
	// The whole page at zoom 20 is 4000x2000 pixels; only 50000 are allowed.
	doc := openFixture(t, security.Limits{MaxRasterPixels: 50000})
	ctx := context.Background()

	img, err := doc.Rasterize(ctx, 0, container.RasterOptions{ZoomX: 20, ZoomY: 20, Clip: &coords.Rect{X0: 10, Y0: 10, X1: 20, Y1: 20}})
	if err != nil {
		t.Fatalf("clipped render: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 200, 200) {
		t.Fatalf("clipped size %v", img.Bounds())
	}

	_, err = doc.Rasterize(ctx, 0, container.RasterOptions{ZoomX: 20, ZoomY: 20, Clip: &coords.Rect{X1: 100, Y1: 100}})
	var le *security.LimitError
	if !errors.As(err, &le) {
		t.Fatalf("expected LimitError for a 2000x2000 output, got %v", err)
	}

	if _, err := doc.Rasterize(ctx, 0, container.RasterOptions{ZoomX: 20, ZoomY: 20}); !errors.As(err, &le) {
		t.Fatalf("expected LimitError for an unclipped 4000x2000 render, got %v", err)
	}
}

func TestCloseTwice(t *testing.T) {
	doc, err := Open(writeFixture(t), security.Limits{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := doc.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := doc.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if doc.PageCount() != 0 {
		t.Fatalf("closed document reports pages")
	}
	if _, err := doc.Rasterize(context.Background(), 0, container.RasterOptions{ZoomX: 1, ZoomY: 1}); err == nil {
		t.Fatalf("expected error after close")
	}
}
