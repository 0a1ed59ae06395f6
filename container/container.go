// Package container defines the document-container capability the slide
// model consumes: open a paginated document, query its geometry, enumerate
// its attachments and rasterize a page. Implementations are not required to
// be safe for concurrent use; callers serialize access.
package container

import (
	"context"
	"fmt"
	"image"

	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/labels"
)

// Document is an open paginated document.
type Document interface {
	// PageCount returns the number of physical pages.
	PageCount() int
	// PageBounds returns the page rectangle in page units (1/72 inch),
	// rotation applied.
	PageBounds(page int) (coords.Rect, error)
	// PageLabels returns the label ranges declared by the document. A
	// document without labels returns an empty slice and no error.
	PageLabels() ([]labels.Range, error)
	// EmbeddedFiles lists the attachments carried by the document.
	EmbeddedFiles() ([]EmbeddedFile, error)
	// Rasterize renders page at the given zoom into an RGB image.
	Rasterize(ctx context.Context, page int, opts RasterOptions) (*image.RGBA, error)
	Close() error
}

// Opener creates Documents from a file path.
type Opener interface {
	Open(ctx context.Context, path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Document, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Document, error) { return f(ctx, path) }

// EmbeddedFile is an attachment found in the document's file table.
type EmbeddedFile struct {
	Name        string // key in the embedded-files table
	Filename    string // file specification name (UF or F), may be empty
	Description string // file specification Desc, may be empty
	Data        []byte
}

// RasterOptions controls a single rasterization.
type RasterOptions struct {
	ZoomX, ZoomY float64
	// Clip limits the output to a region of the page, in page units. Nil
	// renders the full page.
	Clip        *coords.Rect
	Annotations bool
	Alpha       bool
}

// OpenError reports a document that could not be opened or interpreted.
type OpenError struct {
	Path string
	Op   string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("open %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("open %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }
