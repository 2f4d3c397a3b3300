package preprocess

import (
	"image"
	"image/color"
	"image/draw"
)

// PadToSquare centers img on a square canvas of side targetSize filled
// with a neutral gray, preserving aspect ratio — the approach OCR and
// table-structure preprocessing use in place of layout's fixed
// non-aspect-preserving resize, matching the reference implementation's
// RapidOCR-style padding.
func PadToSquare(img image.Image, targetSize int) *image.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == targetSize && h == targetSize {
		out := image.NewRGBA(image.Rect(0, 0, targetSize, targetSize))
		draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
		return out
	}

	padded := image.NewRGBA(image.Rect(0, 0, targetSize, targetSize))
	gray := color.RGBA{128, 128, 128, 255}
	draw.Draw(padded, padded.Bounds(), &image.Uniform{gray}, image.Point{}, draw.Src)

	offsetX := (targetSize - w) / 2
	offsetY := (targetSize - h) / 2
	draw.Draw(padded, image.Rect(offsetX, offsetY, offsetX+w, offsetY+h), img, bounds.Min, draw.Src)

	return padded
}

// AspectResize scales img so its longer side equals maxSide, preserving
// aspect ratio, using bilinear interpolation (approximate — OCR
// detector/recognizer inputs don't require bit-exactness).
func AspectResize(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return img
	}

	scale := float64(maxSide) / float64(w)
	if h > w {
		scale = float64(maxSide) / float64(h)
	}
	newW := int(float64(w)*scale + 0.5)
	newH := int(float64(h)*scale + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	return scaleBilinear(img, newW, newH)
}
