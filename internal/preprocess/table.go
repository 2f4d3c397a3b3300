package preprocess

import (
	"image"

	"github.com/docpipeline/core/internal/docerrors"
)

// DefaultTableStructureSize is the square input side for the table
// structure (OTSL) model.
const DefaultTableStructureSize = 448

// TableStructurePreprocess crops a detected table region, pads it to a
// square, and ImageNet-normalizes it for the structure model (C9).
func TableStructurePreprocess(page image.Image, bbox image.Rectangle, targetSize int) (Tensor, error) {
	if targetSize <= 0 {
		targetSize = DefaultTableStructureSize
	}

	src := page
	if !bbox.Empty() {
		cropped, ok := page.(interface {
			SubImage(r image.Rectangle) image.Image
		})
		if !ok {
			return Tensor{}, docerrors.Preprocessing(0, "source image does not support cropping")
		}
		src = cropped.SubImage(bbox)
	}

	resized := AspectResize(src, targetSize)
	padded := PadToSquare(resized, targetSize)

	pix := make([]uint8, targetSize*targetSize*3)
	for y := 0; y < targetSize; y++ {
		for x := 0; x < targetSize; x++ {
			r, g, b, _ := padded.At(x, y).RGBA()
			base := (y*targetSize + x) * 3
			pix[base] = uint8(r >> 8)
			pix[base+1] = uint8(g >> 8)
			pix[base+2] = uint8(b >> 8)
		}
	}
	data := hwcToCHWNormalized(pix, targetSize, targetSize, 3, ImageNetMean, ImageNetStd)
	return Tensor{Data: data, Shape: []int64{1, 3, int64(targetSize), int64(targetSize)}}, nil
}
