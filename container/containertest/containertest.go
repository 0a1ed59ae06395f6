// Package containertest provides an in-memory container.Document whose
// calls are instrumented, for tests of code that drives a document handle.
package containertest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wudi/slidekit/container"
	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/labels"
)

// ErrClosed is returned by every call on a closed Doc.
var ErrClosed = errors.New("containertest: document closed")

// Doc is a fake document. Configure the exported fields before use; they
// must not be modified once calls are in flight.
type Doc struct {
	Pages     []coords.Size
	Labels    []labels.Range
	Files     []container.EmbeddedFile
	LabelsErr error
	// Delay is slept inside every call to widen any overlap between
	// concurrent callers.
	Delay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
	closes      atomic.Int32

	mu      sync.Mutex
	renders []container.RasterOptions
}

// New returns a Doc with n pages of the given size.
func New(n int, size coords.Size) *Doc {
	d := &Doc{}
	for i := 0; i < n; i++ {
		d.Pages = append(d.Pages, size)
	}
	return d
}

// Opener returns a container.Opener that always hands out d.
func (d *Doc) Opener() container.Opener {
	return container.OpenerFunc(func(context.Context, string) (container.Document, error) {
		return d, nil
	})
}

func (d *Doc) enter() func() {
	n := d.inFlight.Add(1)
	d.calls.Add(1)
	for {
		seen := d.maxInFlight.Load()
		if n <= seen || d.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}
	if d.Delay > 0 {
		time.Sleep(d.Delay)
	}
	return func() { d.inFlight.Add(-1) }
}

// MaxInFlight returns the highest number of simultaneous calls observed.
func (d *Doc) MaxInFlight() int { return int(d.maxInFlight.Load()) }

// Calls returns the number of calls made into the document.
func (d *Doc) Calls() int { return int(d.calls.Load()) }

// Closes returns how many times Close was called.
func (d *Doc) Closes() int { return int(d.closes.Load()) }

// Renders returns the options of every Rasterize call so far.
func (d *Doc) Renders() []container.RasterOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]container.RasterOptions, len(d.renders))
	copy(out, d.renders)
	return out
}

func (d *Doc) closed() bool { return d.closes.Load() > 0 }

func (d *Doc) PageCount() int {
	defer d.enter()()
	return len(d.Pages)
}

func (d *Doc) PageBounds(page int) (coords.Rect, error) {
	defer d.enter()()
	if d.closed() {
		return coords.Rect{}, ErrClosed
	}
	if page < 0 || page >= len(d.Pages) {
		return coords.Rect{}, fmt.Errorf("containertest: page %d out of range", page)
	}
	return coords.RectFromSize(d.Pages[page]), nil
}

func (d *Doc) PageLabels() ([]labels.Range, error) {
	defer d.enter()()
	if d.closed() {
		return nil, ErrClosed
	}
	if d.LabelsErr != nil {
		return nil, d.LabelsErr
	}
	out := make([]labels.Range, len(d.Labels))
	copy(out, d.Labels)
	return out, nil
}

func (d *Doc) EmbeddedFiles() ([]container.EmbeddedFile, error) {
	defer d.enter()()
	if d.closed() {
		return nil, ErrClosed
	}
	out := make([]container.EmbeddedFile, len(d.Files))
	copy(out, d.Files)
	return out, nil
}

// Rasterize returns an opaque image sized to the page (or clip) times the
// zoom. Pixels are shaded by page index so tests can tell pages apart.
func (d *Doc) Rasterize(ctx context.Context, page int, opts container.RasterOptions) (*image.RGBA, error) {
	defer d.enter()()
	if d.closed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 0 || page >= len(d.Pages) {
		return nil, fmt.Errorf("containertest: page %d out of range", page)
	}
	d.mu.Lock()
	d.renders = append(d.renders, opts)
	d.mu.Unlock()

	region := coords.RectFromSize(d.Pages[page])
	if opts.Clip != nil {
		region = region.Intersect(*opts.Clip)
	}
	w := int(math.Ceil(region.Width() * opts.ZoomX))
	h := int(math.Ceil(region.Height() * opts.ZoomY))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	shade := color.RGBA{R: uint8(page), G: 0x80, B: 0xff, A: 0xff}
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = shade.R, shade.G, shade.B, shade.A
	}
	return img, nil
}

func (d *Doc) Close() error {
	d.closes.Add(1)
	return nil
}
