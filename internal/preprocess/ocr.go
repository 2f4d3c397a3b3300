package preprocess

import (
	"image"

	"github.com/docpipeline/core/internal/docerrors"
)

// DefaultOCRDetectorSize is the square input side for the text
// detector stage of the three-model OCR wrapper (C8).
const DefaultOCRDetectorSize = 960

// OCRDetectorPreprocess resizes a page crop so its longer side is
// targetSize, then pads to a targetSize square, and rescales to
// [0,1] without ImageNet normalization — the detector stage does its
// own internal scaling.
func OCRDetectorPreprocess(img image.Image, targetSize int) (Tensor, error) {
	if targetSize <= 0 {
		return Tensor{}, docerrors.Config("OCR detector target size must be positive")
	}
	resized := AspectResize(img, targetSize)
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
	data := hwcToCHWRescaled(pix, targetSize, targetSize, 3)
	return Tensor{Data: data, Shape: []int64{1, 3, int64(targetSize), int64(targetSize)}}, nil
}

// DefaultOrientationSize is the square input side for the text-line
// orientation classifier stage.
const DefaultOrientationSize = 224

// OrientationPreprocess resizes a single detected text-line crop to a
// fixed square and ImageNet-normalizes it for the orientation
// classifier.
func OrientationPreprocess(img image.Image) Tensor {
	resized := scaleBilinear(img, DefaultOrientationSize, DefaultOrientationSize)
	pix := make([]uint8, DefaultOrientationSize*DefaultOrientationSize*3)
	for y := 0; y < DefaultOrientationSize; y++ {
		for x := 0; x < DefaultOrientationSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			base := (y*DefaultOrientationSize + x) * 3
			pix[base] = uint8(r >> 8)
			pix[base+1] = uint8(g >> 8)
			pix[base+2] = uint8(b >> 8)
		}
	}
	data := hwcToCHWNormalized(pix, DefaultOrientationSize, DefaultOrientationSize, 3, ImageNetMean, ImageNetStd)
	return Tensor{Data: data, Shape: []int64{1, 3, DefaultOrientationSize, DefaultOrientationSize}}
}

// RecognizerPreprocess resizes a text-line crop to a fixed height,
// preserving aspect ratio for the width (text recognizers are
// variable-width, fixed-height CRNN/transformer style models), and
// rescales to [0,1].
func RecognizerPreprocess(img image.Image, targetHeight int) Tensor {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	scale := float64(targetHeight) / float64(h)
	targetWidth := int(float64(w)*scale + 0.5)
	if targetWidth < 1 {
		targetWidth = 1
	}

	resized := scaleBilinear(img, targetWidth, targetHeight)
	pix := make([]uint8, targetWidth*targetHeight*3)
	for y := 0; y < targetHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			base := (y*targetWidth + x) * 3
			pix[base] = uint8(r >> 8)
			pix[base+1] = uint8(g >> 8)
			pix[base+2] = uint8(b >> 8)
		}
	}
	data := hwcToCHWRescaled(pix, targetHeight, targetWidth, 3)
	return Tensor{Data: data, Shape: []int64{1, 3, int64(targetHeight), int64(targetWidth)}}
}
