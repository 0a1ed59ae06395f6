package slides

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/wudi/slidekit/container"
	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/labels"
	"github.com/wudi/slidekit/observability"
	"github.com/wudi/slidekit/render"
)

// RenderRequest describes one page rendering.
type RenderRequest struct {
	Page int
	// Crop selects a region of the page, in page units, to fill the viewport
	// instead of the whole page. A crop with zero area means no crop.
	Crop        *coords.Rect
	Viewport    coords.Size // logical pixels
	DeviceScale float64     // physical pixels per logical pixel; 0 means 1
	// Annotations asks the container to draw annotations. The MuPDF
	// container always draws them and ignores false.
	Annotations bool
}

// RenderResult is delivered by RenderAsync.
type RenderResult struct {
	Request RenderRequest
	Bitmap  *render.Bitmap
	Err     error
}

// RenderPage rasterizes a page, or a region of it, scaled uniformly to fit
// the viewport. The returned bitmap is shared with the render cache and must
// not be modified. With the default MuPDF container annotations are always
// drawn, whatever req.Annotations says.
func (d *Deck) RenderPage(ctx context.Context, req RenderRequest) (bmp *render.Bitmap, err error) {
	if err := d.checkPage(req.Page); err != nil {
		return nil, err
	}
	ctx, span := d.tracer.StartSpan(ctx, "slides.render")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	start := time.Now()

	var crop *coords.Rect
	if req.Crop != nil {
		if c := req.Crop.Normalize(); !c.Empty() {
			crop = &c
		}
	}
	scale := req.DeviceScale
	if scale <= 0 {
		scale = 1
	}

	var bounds coords.Rect
	err = d.guard.do(func(doc container.Document) error {
		var err error
		bounds, err = doc.PageBounds(req.Page)
		return err
	})
	if err != nil {
		return nil, err
	}
	zoom := render.Zoom(bounds.Size(), crop, req.Viewport, scale)
	if zoom <= 0 || math.IsInf(zoom, 0) || math.IsNaN(zoom) {
		return nil, fmt.Errorf("slides: viewport %gx%g at scale %g yields no pixels for page %d", req.Viewport.W, req.Viewport.H, scale, req.Page)
	}

	key := cacheKey(req.Page, zoom, crop, req.Annotations)
	if d.renders != nil {
		if v, ok := d.renders.Get(key); ok {
			span.SetTag(observability.MetricCacheHit, true)
			d.log.Debug("render cache hit", observability.Int("page", req.Page), observability.Float64("zoom", zoom))
			return v.(*render.Bitmap), nil
		}
	}

	var img *image.RGBA
	err = d.guard.do(func(doc container.Document) error {
		var err error
		img, err = doc.Rasterize(ctx, req.Page, container.RasterOptions{
			ZoomX:       zoom,
			ZoomY:       zoom,
			Clip:        crop,
			Annotations: req.Annotations,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("slides: render page %d: %w", req.Page, err)
	}
	bmp = render.NewBitmap(img, render.PointsPerInch*zoom)
	if d.renders != nil && !d.closed.Load() {
		d.renders.Set(key, bmp, cache.DefaultExpiration)
	}

	elapsed := time.Since(start)
	span.SetTag(observability.MetricRenderTime, elapsed)
	d.log.Debug("page rendered",
		observability.Int("page", req.Page),
		observability.Float64("zoom", zoom),
		observability.Int("width", bmp.Width()),
		observability.Int("height", bmp.Height()),
		observability.Duration("elapsed", elapsed),
	)
	return bmp, nil
}

func cacheKey(page int, zoom float64, crop *coords.Rect, annots bool) string {
	if crop == nil {
		return fmt.Sprintf("%d/%g/-/%t", page, zoom, annots)
	}
	return fmt.Sprintf("%d/%g/%g,%g,%g,%g/%t", page, zoom, crop.X0, crop.Y0, crop.X1, crop.Y1, annots)
}

// RenderAsync runs RenderPage on its own goroutine. The channel receives
// exactly one result and is then closed. Results arrive in completion order,
// not request order; see Sequencer for discarding superseded ones.
func (d *Deck) RenderAsync(ctx context.Context, req RenderRequest) <-chan RenderResult {
	ch := make(chan RenderResult, 1)
	go func() {
		defer close(ch)
		bmp, err := d.RenderPage(ctx, req)
		ch <- RenderResult{Request: req, Bitmap: bmp, Err: err}
	}()
	return ch
}

// Thumbnail is the preview of one slide.
type Thumbnail struct {
	Slide  labels.Slide
	Bitmap *render.Bitmap
}

// Thumbnails renders every slide at the given pixel width. Each slide is
// shown by its last page so animated builds appear complete.
func (d *Deck) Thumbnails(ctx context.Context, width int) ([]Thumbnail, error) {
	if width <= 0 {
		return nil, fmt.Errorf("slides: thumbnail width %d", width)
	}
	list, err := d.Slides()
	if err != nil {
		return nil, err
	}
	out := make([]Thumbnail, 0, len(list))
	for _, s := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		aspect, err := d.PageAspect(s.LastPage)
		if err != nil {
			return nil, err
		}
		w := float64(width)
		bmp, err := d.RenderPage(ctx, RenderRequest{
			Page:     s.LastPage,
			Viewport: coords.Size{W: w, H: w / aspect},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, Thumbnail{Slide: s, Bitmap: bmp})
	}
	return out, nil
}
