package cell

import (
	"testing"

	"github.com/docpipeline/core/internal/geometry"
)

func box(l, t, r, b float64) geometry.BBox {
	return geometry.NewBBox(l, t, r, b, geometry.TopLeft)
}

func TestWithin(t *testing.T) {
	p := NewPool([]TextCell{
		{Text: "a", BBox: box(1, 1, 5, 5)},
		{Text: "b", BBox: box(100, 100, 110, 110)},
	})
	region := box(0, 0, 20, 20)
	got := p.Within(region, 0.99)
	if len(got) != 1 || got[0].Text != "a" {
		t.Errorf("Within = %+v, want just cell a", got)
	}
}

func TestRemaining(t *testing.T) {
	p := NewPool([]TextCell{
		{Text: "a", BBox: box(1, 1, 5, 5)},
		{Text: "b", BBox: box(100, 100, 110, 110)},
	})
	regions := []geometry.BBox{box(0, 0, 20, 20)}
	got := p.Remaining(regions, 0.99)
	if len(got) != 1 || got[0].Text != "b" {
		t.Errorf("Remaining = %+v, want just cell b", got)
	}
}

func TestTextConcat(t *testing.T) {
	cells := []TextCell{{Text: "hello"}, {Text: "world"}}
	if got := Text(cells); got != "hello world" {
		t.Errorf("Text = %q, want %q", got, "hello world")
	}
	if got := Text(nil); got != "" {
		t.Errorf("Text(nil) = %q, want empty", got)
	}
}

func TestBoundingBox(t *testing.T) {
	cells := []TextCell{
		{BBox: box(0, 0, 5, 5)},
		{BBox: box(10, 10, 20, 20)},
	}
	got, ok := BoundingBox(cells)
	if !ok {
		t.Fatal("expected ok")
	}
	if got.Left != 0 || got.Top != 0 || got.Right != 20 || got.Bottom != 20 {
		t.Errorf("BoundingBox = %+v", got)
	}
	if _, ok := BoundingBox(nil); ok {
		t.Error("expected !ok for empty cells")
	}
}
