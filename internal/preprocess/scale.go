package preprocess

import (
	"image"

	"golang.org/x/image/draw"
)

// scaleBilinear resizes img to w x h using the approximate bilinear
// scaler from golang.org/x/image/draw, the precision tier appropriate
// for OCR/table inputs that tolerate sub-pixel approximation (the
// layout path, by contrast, must go through the bit-exact resizer in
// internal/resize).
func scaleBilinear(img image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
