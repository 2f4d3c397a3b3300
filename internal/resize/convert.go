package resize

import (
	"image"
)

// FromStdImage converts a standard library image.Image into an HWC
// uint8 buffer with the given channel count (3 for RGB, 4 for RGBA).
// Alpha is dropped when channels == 3.
func FromStdImage(img image.Image, channels int) *Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := NewImage(h, w, channels)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out.set(y, x, 0, uint8(r>>8))
			out.set(y, x, 1, uint8(g>>8))
			out.set(y, x, 2, uint8(b>>8))
			if channels == 4 {
				out.set(y, x, 3, uint8(a>>8))
			}
		}
	}
	return out
}

// ToStdImage converts an HWC uint8 buffer (3 or 4 channels) into a
// standard library *image.NRGBA.
func ToStdImage(img *Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r := img.at(y, x, 0)
			g := img.at(y, x, 1)
			b := img.at(y, x, 2)
			a := uint8(255)
			if img.Channels == 4 {
				a = img.at(y, x, 3)
			}
			i := out.PixOffset(x, y)
			out.Pix[i] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = a
		}
	}
	return out
}
