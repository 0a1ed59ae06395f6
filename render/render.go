// Package render computes the zoom needed to fit a page, or a region of a
// page, into a viewport and packages rasterized pages as opaque RGB bitmaps.
package render

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/wudi/slidekit/coords"
)

// PointsPerInch is the page-unit resolution at zoom 1.
const PointsPerInch = 72.0

// Zoom returns the uniform scale that fits the page, or the crop region when
// crop is non-nil, into viewport at the given device scale. The smaller of
// the horizontal and vertical factors wins, so the result never stretches.
//
// crop must have a non-zero area; callers map an empty selection to nil.
// An empty page size yields 0.
func Zoom(page coords.Size, crop *coords.Rect, viewport coords.Size, deviceScale float64) float64 {
	if page.Empty() {
		return 0
	}
	xScale, yScale := 1.0, 1.0
	if crop != nil {
		xScale = page.W / math.Abs(crop.Width())
		yScale = page.H / math.Abs(crop.Height())
	}
	zoomX := viewport.W * deviceScale * xScale / page.W
	zoomY := viewport.H * deviceScale * yScale / page.H
	return math.Min(zoomX, zoomY)
}

// PixelRect maps a region of page, in page units, to the pixel rectangle it
// occupies in a rendering of the whole page at (zoomX, zoomY).
func PixelRect(page, region coords.Rect, zoomX, zoomY float64) image.Rectangle {
	m := coords.Translate(-page.X0, -page.Y0).Multiply(coords.Scale(zoomX, zoomY))
	r := m.TransformRect(region)
	return image.Rect(
		int(math.Floor(r.X0)), int(math.Floor(r.Y0)),
		int(math.Ceil(r.X1)), int(math.Ceil(r.Y1)),
	)
}

// Crop cuts region out of img, a rendering of the whole page at
// (zoomX, zoomY). The region is clipped to the page. The result has its
// origin at (0,0) and does not share pixels with img.
func Crop(img *image.RGBA, page, region coords.Rect, zoomX, zoomY float64) *image.RGBA {
	src := PixelRect(page, page.Intersect(region), zoomX, zoomY).Add(img.Bounds().Min).Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Copy(dst, image.Point{}, img, src, draw.Src, nil)
	return dst
}

// CappedZoom returns zoom, lowered if needed so that the whole page rendered
// at it stays within maxPixels. A non-positive maxPixels disables the cap.
func CappedZoom(page coords.Size, zoom float64, maxPixels int64) float64 {
	if maxPixels <= 0 || page.Empty() {
		return zoom
	}
	if page.W*zoom*page.H*zoom <= float64(maxPixels) {
		return zoom
	}
	return math.Sqrt(float64(maxPixels) / (page.W * page.H))
}

// Scale resamples img to w by h pixels with Catmull-Rom interpolation.
func Scale(img *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
