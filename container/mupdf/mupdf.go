// Package mupdf implements container.Document for PDF files. Pages are
// rasterized by MuPDF through go-fitz; the catalog structures MuPDF does not
// expose to Go (page labels, the embedded-files table, page boxes) are read
// with a pure-Go object reader over the same file.
//
// A Document is not safe for concurrent use.
package mupdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/gen2brain/go-fitz"

	"github.com/wudi/slidekit/container"
	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/labels"
	"github.com/wudi/slidekit/render"
	"github.com/wudi/slidekit/security"
)

// Opener opens PDF files. The zero value uses security.DefaultLimits.
type Opener struct {
	Limits security.Limits
}

// Open implements container.Opener. Failures are *container.OpenError.
func (o Opener) Open(ctx context.Context, path string) (container.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := Open(path, o.Limits)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Document is an open PDF.
type Document struct {
	path   string
	limits security.Limits
	fz     *fitz.Document
	file   *os.File
	cat    *catalog
	closed bool
}

var _ container.Document = (*Document)(nil)

// Open loads the PDF at path.
func Open(path string, limits security.Limits) (*Document, error) {
	limits = limits.WithDefaults()
	fz, err := fitz.New(path)
	if err != nil {
		return nil, &container.OpenError{Path: path, Op: "load", Err: err}
	}
	file, err := os.Open(path)
	if err != nil {
		fz.Close()
		return nil, &container.OpenError{Path: path, Op: "load", Err: err}
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		fz.Close()
		return nil, &container.OpenError{Path: path, Op: "stat", Err: err}
	}
	cat, err := newCatalog(file, st.Size(), limits)
	if err != nil {
		file.Close()
		fz.Close()
		return nil, &container.OpenError{Path: path, Op: "catalog", Err: err}
	}
	return &Document{path: path, limits: limits, fz: fz, file: file, cat: cat}, nil
}

var errClosed = errors.New("mupdf: document closed")

func (d *Document) PageCount() int {
	if d.closed {
		return 0
	}
	return d.fz.NumPage()
}

func (d *Document) checkPage(page int) error {
	if d.closed {
		return errClosed
	}
	if page < 0 || page >= d.fz.NumPage() {
		return fmt.Errorf("mupdf: page %d out of range [0,%d)", page, d.fz.NumPage())
	}
	return nil
}

// PageBounds prefers the exact boxes from the page dictionary; MuPDF only
// reports integer bounds.
func (d *Document) PageBounds(page int) (coords.Rect, error) {
	if err := d.checkPage(page); err != nil {
		return coords.Rect{}, err
	}
	if r, ok := d.cat.pageBounds(page); ok {
		return r, nil
	}
	b, err := d.fz.Bound(page)
	if err != nil {
		return coords.Rect{}, fmt.Errorf("mupdf: bound page %d: %w", page, err)
	}
	return coords.Rect{X0: float64(b.Min.X), Y0: float64(b.Min.Y), X1: float64(b.Max.X), Y1: float64(b.Max.Y)}, nil
}

func (d *Document) PageLabels() ([]labels.Range, error) {
	if d.closed {
		return nil, errClosed
	}
	return d.cat.pageLabels()
}

func (d *Document) EmbeddedFiles() ([]container.EmbeddedFile, error) {
	if d.closed {
		return nil, errClosed
	}
	return d.cat.embeddedFiles()
}

// Rasterize renders page at ZoomX. go-fitz has no clip rectangle, so a
// clipped render rasterizes the whole page and cuts Clip out of it. When the
// whole page at ZoomX would exceed Limits.MaxRasterPixels, the page is
// rendered at the largest zoom that fits and the cut region is resampled up
// to its requested size. MuPDF always composites annotations and returns an
// opaque RGB image; the Annotations and Alpha options cannot be honoured.
func (d *Document) Rasterize(ctx context.Context, page int, opts container.RasterOptions) (*image.RGBA, error) {
	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ZoomX <= 0 || opts.ZoomY <= 0 {
		return nil, fmt.Errorf("mupdf: invalid zoom %gx%g", opts.ZoomX, opts.ZoomY)
	}
	bounds, err := d.PageBounds(page)
	if err != nil {
		return nil, err
	}
	full := coords.RectFromSize(bounds.Size())
	region := full
	if opts.Clip != nil {
		region = full.Intersect(*opts.Clip)
		if region.Empty() {
			return nil, fmt.Errorf("mupdf: clip %+v misses page %d", *opts.Clip, page)
		}
	}
	out := render.PixelRect(full, region, opts.ZoomX, opts.ZoomX)
	if err := d.limits.CheckRasterPixels(out.Dx(), out.Dy()); err != nil {
		return nil, fmt.Errorf("mupdf: page %d: %w", page, err)
	}

	zoom := render.CappedZoom(full.Size(), opts.ZoomX, d.limits.MaxRasterPixels)
	img, err := d.fz.ImageDPI(page, zoom*render.PointsPerInch)
	if err != nil {
		return nil, fmt.Errorf("mupdf: render page %d: %w", page, err)
	}
	if opts.Clip == nil && zoom == opts.ZoomX {
		return img, nil
	}
	cut := render.Crop(img, full, region, zoom, zoom)
	if zoom == opts.ZoomX {
		return cut, nil
	}
	return render.Scale(cut, out.Dx(), out.Dy()), nil
}

// Close releases MuPDF and the file. Later calls return nil.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return errors.Join(d.fz.Close(), d.file.Close())
}
