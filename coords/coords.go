// Package coords holds the page-space geometry shared by the render path:
// sizes, rectangles and the affine matrix that maps page units to pixels.
package coords

import "math"

// Matrix is an affine transform [a b c d e f]. Multiply applies the receiver
// first.
type Matrix [6]float64

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{m[0]*o[0] + m[1]*o[2], m[0]*o[1] + m[1]*o[3], m[2]*o[0] + m[3]*o[2], m[2]*o[1] + m[3]*o[3], m[4]*o[0] + m[5]*o[2] + o[4], m[4]*o[1] + m[5]*o[3] + o[5]}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// TransformRect maps both corners of r and returns the normalized result.
func (m Matrix) TransformRect(r Rect) Rect {
	a := m.Transform(Point{r.X0, r.Y0})
	b := m.Transform(Point{r.X1, r.Y1})
	return Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}.Normalize()
}

// Size is a width/height pair in page units (1/72 inch) or pixels.
type Size struct{ W, H float64 }

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// Rect is an axis-aligned rectangle given by two corners. Page rectangles use
// the rasterizer's convention: origin top-left, y growing downwards.
type Rect struct{ X0, Y0, X1, Y1 float64 }

func RectFromSize(s Size) Rect { return Rect{X1: s.W, Y1: s.H} }

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }
func (r Rect) Size() Size      { return Size{W: r.Width(), H: r.Height()} }

// Empty reports a zero-area rectangle. A crop that is Empty means "no crop".
func (r Rect) Empty() bool { return r.X0 == r.X1 || r.Y0 == r.Y1 }

// Normalize orders the corners so that X0<=X1 and Y0<=Y1.
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

// Intersect returns the overlap of r and o, or the zero Rect if they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	r, o = r.Normalize(), o.Normalize()
	out := Rect{
		X0: math.Max(r.X0, o.X0),
		Y0: math.Max(r.Y0, o.Y0),
		X1: math.Min(r.X1, o.X1),
		Y1: math.Min(r.Y1, o.Y1),
	}
	if out.X0 >= out.X1 || out.Y0 >= out.Y1 {
		return Rect{}
	}
	return out
}

// CropFromFractions maps a selection given as fractions of the page's extent
// (0..1 on both axes, corners in any order) into page coordinates. It returns
// nil when the selection has no area.
func CropFromFractions(page Rect, u0, v0, u1, v1 float64) *Rect {
	sel := Rect{X0: u0, Y0: v0, X1: u1, Y1: v1}.Normalize()
	crop := Rect{
		X0: page.X0 + sel.X0*page.Width(),
		Y0: page.Y0 + sel.Y0*page.Height(),
		X1: page.X0 + sel.X1*page.Width(),
		Y1: page.Y0 + sel.Y1*page.Height(),
	}
	if crop.Empty() {
		return nil
	}
	return &crop
}
