package preprocess

import (
	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/resize"
)

const (
	minLayoutSize = 224
	maxLayoutSize = 1280
)

// LayoutPreprocess resizes an RGB raster image to targetSize x
// targetSize using the bit-exact resizer (C2), rescales to [0,1], and
// emits a CHW tensor with no further normalization — the
// RTDetrImageProcessor contract (do_resize, do_rescale, NOT
// do_normalize, NOT do_pad).
func LayoutPreprocess(img *resize.Image, targetSize int) (Tensor, error) {
	if img.Channels != 3 {
		return Tensor{}, docerrors.Preprocessing(0, "layout preprocessing requires 3 channels (RGB)")
	}
	if targetSize < minLayoutSize {
		return Tensor{}, docerrors.Config("layout target size must be at least 224")
	}
	if targetSize > maxLayoutSize {
		return Tensor{}, docerrors.Config("layout target size above 1280 not supported")
	}

	resized := resize.Resize(img, targetSize, targetSize)
	data := hwcToCHWRescaled(resized.Pix, targetSize, targetSize, 3)

	return Tensor{
		Data:  data,
		Shape: []int64{1, 3, int64(targetSize), int64(targetSize)},
	}, nil
}
