// Package geometry provides the bounding-box type and area/overlap math
// shared across layout detection, cluster resolution, and table
// structure decoding.
package geometry

import "math"

// CoordOrigin identifies which corner a BBox's (0,0) is measured from.
// PDF native coordinates are bottom-left; raster and most ML model
// outputs are top-left. Mixing the two without converting is a common
// source of flipped-layout bugs, so BBox always carries its origin.
type CoordOrigin int

const (
	TopLeft CoordOrigin = iota
	BottomLeft
)

// BBox is an axis-aligned bounding box: left, top, right, bottom, in the
// coordinate system named by Origin. By convention Left <= Right and,
// for TopLeft origin, Top <= Bottom (Bottom is numerically larger /
// further down the page); for BottomLeft origin, Bottom <= Top.
type BBox struct {
	Left   float64 `json:"l"`
	Top    float64 `json:"t"`
	Right  float64 `json:"r"`
	Bottom float64 `json:"b"`
	Origin CoordOrigin `json:"origin"`
}

// NewBBox builds a BBox, normalizing so Left<=Right always and
// Top/Bottom order matches origin convention.
func NewBBox(l, t, r, b float64, origin CoordOrigin) BBox {
	if l > r {
		l, r = r, l
	}
	switch origin {
	case TopLeft:
		if t > b {
			t, b = b, t
		}
	case BottomLeft:
		if b > t {
			t, b = b, t
		}
	}
	return BBox{Left: l, Top: t, Right: r, Bottom: b, Origin: origin}
}

// Width returns the box's horizontal extent.
func (b BBox) Width() float64 {
	return b.Right - b.Left
}

// Height returns the box's vertical extent, independent of origin.
func (b BBox) Height() float64 {
	return math.Abs(b.Bottom - b.Top)
}

// Area returns Width*Height, zero for degenerate boxes.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// ToTopLeft returns an equivalent box expressed in TopLeft coordinates
// within a page of the given height. A no-op if already TopLeft.
func (b BBox) ToTopLeft(pageHeight float64) BBox {
	if b.Origin == TopLeft {
		return b
	}
	return NewBBox(b.Left, pageHeight-b.Top, b.Right, pageHeight-b.Bottom, TopLeft)
}

// normalized returns (top, bottom) such that top<=bottom regardless of
// origin, for internal overlap math.
func (b BBox) normalized() (top, bottom float64) {
	if b.Top <= b.Bottom {
		return b.Top, b.Bottom
	}
	return b.Bottom, b.Top
}

// Intersection returns the overlapping region of two boxes in the same
// coordinate origin, and whether they overlap at all.
func Intersection(a, b BBox) (BBox, bool) {
	if a.Origin != b.Origin {
		b = b.ToTopLeft(0) // no page height is available here, so mixed origins are converted against a height of 0
	}
	left := math.Max(a.Left, b.Left)
	right := math.Min(a.Right, b.Right)
	aTop, aBottom := a.normalized()
	bTop, bBottom := b.normalized()
	top := math.Max(aTop, bTop)
	bottom := math.Min(aBottom, bBottom)

	if left >= right || top >= bottom {
		return BBox{}, false
	}
	return BBox{Left: left, Top: top, Right: right, Bottom: bottom, Origin: a.Origin}, true
}

// IoU computes the intersection-over-union ratio of two boxes, 0 if
// they don't overlap or either has zero area.
func IoU(a, b BBox) float64 {
	inter, ok := Intersection(a, b)
	if !ok {
		return 0
	}
	interArea := inter.Area()
	union := a.Area() + b.Area() - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// IoSelf computes the intersection area divided by a's own area — "how
// much of a is covered by b" — used for containment tests that IoU
// would underreport when b is much larger than a.
func IoSelf(a, b BBox) float64 {
	inter, ok := Intersection(a, b)
	if !ok {
		return 0
	}
	aArea := a.Area()
	if aArea <= 0 {
		return 0
	}
	return inter.Area() / aArea
}

// Contains reports whether b's area is covered by a at least `threshold`
// fraction (IoSelf(b, a) >= threshold), i.e. a contains b.
func Contains(a, b BBox, threshold float64) bool {
	return IoSelf(b, a) >= threshold
}

// Union returns the smallest box enclosing both a and b.
func Union(a, b BBox) BBox {
	aTop, aBottom := a.normalized()
	bTop, bBottom := b.normalized()
	return BBox{
		Left:   math.Min(a.Left, b.Left),
		Right:  math.Max(a.Right, b.Right),
		Top:    math.Min(aTop, bTop),
		Bottom: math.Max(aBottom, bBottom),
		Origin: a.Origin,
	}
}

// CenterY returns the vertical midpoint, independent of origin.
func (b BBox) CenterY() float64 {
	top, bottom := b.normalized()
	return (top + bottom) / 2
}

// CenterX returns the horizontal midpoint.
func (b BBox) CenterX() float64 {
	return (b.Left + b.Right) / 2
}
