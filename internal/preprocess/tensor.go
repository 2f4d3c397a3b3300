// Package preprocess turns raster page crops into the tensors each
// inference model expects (C3): layout detection needs a bit-exact
// resize with no normalization, OCR and table structure need padded
// aspect-preserving resizes, code/formula needs a cropped ImageNet-
// normalized square. Each preprocessor is a pure function from image
// bytes to a Tensor so C4 can stay agnostic of how a tensor was built.
package preprocess

import "fmt"

// Tensor is a flat float32 buffer with an explicit shape, the common
// currency every inference backend in C4 consumes.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Len returns the product of Shape; it is not checked against len(Data).
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

func (t Tensor) String() string {
	return fmt.Sprintf("Tensor{shape=%v, len=%d}", t.Shape, len(t.Data))
}

// ImageNetMean and ImageNetStd are the standard per-channel (R,G,B)
// normalization constants used by the code/formula and table structure
// models.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// hwcToCHWRescaled converts an HWC uint8 image buffer to a CHW float32
// tensor scaled to [0,1] with NO normalization, the RTDetrImageProcessor
// contract used by layout preprocessing.
func hwcToCHWRescaled(pix []uint8, height, width, channels int) []float32 {
	out := make([]float32, 3*height*width)
	hw := height * width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			base := (y*width + x) * channels
			out[idx] = float32(pix[base]) / 255.0
			out[hw+idx] = float32(pix[base+1]) / 255.0
			out[2*hw+idx] = float32(pix[base+2]) / 255.0
		}
	}
	return out
}

// hwcToCHWNormalized converts an HWC uint8 buffer to a CHW float32
// tensor with ImageNet mean/std normalization, the Idefics3/table
// structure contract: (pixel/255 - mean) / std.
func hwcToCHWNormalized(pix []uint8, height, width, channels int, mean, std [3]float32) []float32 {
	out := make([]float32, 3*height*width)
	hw := height * width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			base := (y*width + x) * channels
			out[idx] = (float32(pix[base])/255.0 - mean[0]) / std[0]
			out[hw+idx] = (float32(pix[base+1])/255.0 - mean[1]) / std[1]
			out[2*hw+idx] = (float32(pix[base+2])/255.0 - mean[2]) / std[2]
		}
	}
	return out
}
