// Package resize implements a PIL/Pillow-compatible bilinear image
// resize using 22-bit fixed-point arithmetic, bit-exact with
// Pillow's libImaging/Resample.c for the layout model's preprocessing
// path (C2). Two correctness details matter and are easy to lose in a
// port: weights are normalized to sum to 1.0 in float64 BEFORE
// conversion to fixed-point, and all weight arithmetic uses float64,
// not float32.
package resize

// precisionBits matches PIL's PRECISION_BITS (32 - 8 - 2): enough
// headroom for 8-bit pixel values accumulated in int64.
const precisionBits = 22

// Image is a height x width x channels uint8 buffer in HWC layout,
// matching the tensor layout native PDF rasterization produces.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8 // len == Height*Width*Channels, row-major, channel-minor
}

// NewImage allocates a zeroed Image of the given shape.
func NewImage(height, width, channels int) *Image {
	return &Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]uint8, height*width*channels),
	}
}

func (img *Image) at(y, x, c int) uint8 {
	return img.Pix[(y*img.Width+x)*img.Channels+c]
}

func (img *Image) set(y, x, c int, v uint8) {
	img.Pix[(y*img.Width+x)*img.Channels+c] = v
}

// bilinearFilter is PIL's triangle filter: max(0, 1-|x|).
func bilinearFilter(x float64) float64 {
	absX := x
	if absX < 0 {
		absX = -absX
	}
	if absX < 1.0 {
		return 1.0 - absX
	}
	return 0.0
}

// clip8 clamps an accumulator result to the uint8 range.
func clip8(value int64) uint8 {
	if value < 0 {
		return 0
	}
	if value > 255 {
		return 255
	}
	return uint8(value)
}

// weightInfo holds the precomputed contribution window for a single
// output coordinate in one dimension.
type weightInfo struct {
	startIdx     int
	count        int
	weightsFixed []int64
}

// precomputeWeights computes, for every output position along one
// dimension, the window of input pixels it draws from and their
// fixed-point weights — normalized to sum 1.0 in float64 before the
// fixed-point conversion, matching PIL's precompute_coeffs exactly.
func precomputeWeights(inputSize, outputSize int) []weightInfo {
	scale := float64(inputSize) / float64(outputSize)
	filterscale := scale
	if filterscale < 1.0 {
		filterscale = 1.0
	}
	support := filterscale

	table := make([]weightInfo, outputSize)

	for outPos := 0; outPos < outputSize; outPos++ {
		center := (float64(outPos) + 0.5) * scale

		minIdx := int(floor(center - support + 0.5))
		if minIdx < 0 {
			minIdx = 0
		}
		maxIdx := int(floor(center + support + 0.5))
		if maxIdx > inputSize {
			maxIdx = inputSize
		}

		count := maxIdx - minIdx
		weights := make([]float64, count)
		wsum := 0.0
		for i, idx := 0, minIdx; idx < maxIdx; i, idx = i+1, idx+1 {
			distance := (float64(idx) + 0.5 - center) / filterscale
			w := bilinearFilter(distance)
			weights[i] = w
			wsum += w
		}

		if wsum > 0.0 {
			for i := range weights {
				weights[i] /= wsum
			}
		}

		weightsFixed := make([]int64, count)
		scaleFactor := float64(uint32(1) << precisionBits)
		for i, w := range weights {
			weightsFixed[i] = int64(w*scaleFactor + 0.5)
		}

		table[outPos] = weightInfo{startIdx: minIdx, count: count, weightsFixed: weightsFixed}
	}

	return table
}

func floor(v float64) float64 {
	i := int64(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return float64(i)
}

// Resize performs a two-pass separable bilinear resize of input into an
// outHeight x outWidth image with the same channel count, bit-exact
// with Pillow's Image.resize(..., Image.BILINEAR).
func Resize(input *Image, outHeight, outWidth int) *Image {
	channels := input.Channels

	horizontalWeights := precomputeWeights(input.Width, outWidth)
	temp := NewImage(input.Height, outWidth, channels)

	for y := 0; y < input.Height; y++ {
		for outX := 0; outX < outWidth; outX++ {
			wi := horizontalWeights[outX]
			xmin := wi.startIdx
			for c := 0; c < channels; c++ {
				ss := int64(1) << (precisionBits - 1)
				for i := 0; i < wi.count; i++ {
					ss += int64(input.at(y, xmin+i, c)) * wi.weightsFixed[i]
				}
				temp.set(y, outX, c, clip8(ss>>precisionBits))
			}
		}
	}

	verticalWeights := precomputeWeights(input.Height, outHeight)
	output := NewImage(outHeight, outWidth, channels)

	for outY := 0; outY < outHeight; outY++ {
		wi := verticalWeights[outY]
		ymin := wi.startIdx
		for x := 0; x < outWidth; x++ {
			for c := 0; c < channels; c++ {
				ss := int64(1) << (precisionBits - 1)
				for i := 0; i < wi.count; i++ {
					ss += int64(temp.at(ymin+i, x, c)) * wi.weightsFixed[i]
				}
				output.set(outY, x, c, clip8(ss>>precisionBits))
			}
		}
	}

	return output
}
