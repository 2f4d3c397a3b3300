package resize

import (
	"image"
	"image/color"
	"testing"
)

func TestStdImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.NRGBA{10, 20, 30, 255})
	src.Set(1, 0, color.NRGBA{40, 50, 60, 255})
	src.Set(2, 1, color.NRGBA{70, 80, 90, 255})

	converted := FromStdImage(src, 3)
	if converted.Width != 3 || converted.Height != 2 {
		t.Fatalf("shape = (%d,%d), want (3,2)", converted.Width, converted.Height)
	}
	if converted.at(0, 0, 0) != 10 || converted.at(0, 0, 1) != 20 || converted.at(0, 0, 2) != 30 {
		t.Errorf("pixel (0,0) mismatch: %v", converted.Pix[:3])
	}

	back := ToStdImage(converted)
	r, g, b, a := back.At(0, 0).RGBA()
	if uint8(r>>8) != 10 || uint8(g>>8) != 20 || uint8(b>>8) != 30 || uint8(a>>8) != 255 {
		t.Errorf("round-trip pixel (0,0) = (%d,%d,%d,%d)", r>>8, g>>8, b>>8, a>>8)
	}
}
