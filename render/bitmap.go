package render

import (
	"image"
	"image/color"
)

// Bitmap is an immutable, opaque 24-bit RGB image with resolution metadata.
// It implements image.Image.
type Bitmap struct {
	width, height int
	dpiX, dpiY    float64
	pix           []byte // R,G,B per pixel, rows packed
}

// NewBitmap packs img into RGB24, dropping alpha. dpi is the resolution the
// page was rendered at (PointsPerInch times the zoom).
func NewBitmap(img *image.RGBA, dpi float64) *Bitmap {
	b := img.Bounds()
	bm := &Bitmap{
		width:  b.Dx(),
		height: b.Dy(),
		dpiX:   dpi,
		dpiY:   dpi,
		pix:    make([]byte, 3*b.Dx()*b.Dy()),
	}
	for y := 0; y < bm.height; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := bm.pix[3*bm.width*y:]
		for x := 0; x < bm.width; x++ {
			dst[3*x] = src[4*x]
			dst[3*x+1] = src[4*x+1]
			dst[3*x+2] = src[4*x+2]
		}
	}
	return bm
}

func (b *Bitmap) Width() int  { return b.width }
func (b *Bitmap) Height() int { return b.height }

// Stride is the number of bytes per row.
func (b *Bitmap) Stride() int { return 3 * b.width }

// DPI returns the horizontal and vertical resolution.
func (b *Bitmap) DPI() (x, y float64) { return b.dpiX, b.dpiY }

// Pix returns a copy of the packed RGB24 samples.
func (b *Bitmap) Pix() []byte {
	out := make([]byte, len(b.pix))
	copy(out, b.pix)
	return out
}

func (b *Bitmap) ColorModel() color.Model { return color.RGBAModel }

func (b *Bitmap) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

func (b *Bitmap) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return color.RGBA{}
	}
	i := 3 * (y*b.width + x)
	return color.RGBA{R: b.pix[i], G: b.pix[i+1], B: b.pix[i+2], A: 0xff}
}
