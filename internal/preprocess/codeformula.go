package preprocess

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/geometry"
)

// DefaultCodeFormulaSize is the Idefics3 model's square input
// resolution.
const DefaultCodeFormulaSize = 512

// expansionFactor widens a detected code/formula region before
// cropping, so the model sees a little surrounding context, matching
// the reference implementation's images_scale/expansion_factor pair.
const expansionFactor = 0.18

// CodeFormulaPreprocessor crops a region out of a page raster, resizes
// it to a square, and ImageNet-normalizes it for the Idefics3-style
// code/formula decoder (C10). Unlike the layout path, bit-exactness is
// not required here — CatmullRom matches the reference's Lanczos3
// quality tier closely enough for a generative decoder.
type CodeFormulaPreprocessor struct {
	ImageSize int
	Mean      [3]float32
	Std       [3]float32
}

// NewCodeFormulaPreprocessor builds a preprocessor with the default
// 512x512 size and ImageNet normalization.
func NewCodeFormulaPreprocessor() *CodeFormulaPreprocessor {
	return &CodeFormulaPreprocessor{
		ImageSize: DefaultCodeFormulaSize,
		Mean:      ImageNetMean,
		Std:       ImageNetStd,
	}
}

// ExpandBBox grows bbox outward by expansionFactor of its own
// dimensions, clamped to the page bounds.
func ExpandBBox(bbox geometry.BBox, pageWidth, pageHeight float64) geometry.BBox {
	dx := bbox.Width() * expansionFactor
	dy := bbox.Height() * expansionFactor
	l := bbox.Left - dx
	r := bbox.Right + dx
	top, bottom := bbox.Top, bbox.Bottom
	if top > bottom {
		top, bottom = bottom, top
	}
	top -= dy
	bottom += dy

	if l < 0 {
		l = 0
	}
	if top < 0 {
		top = 0
	}
	if r > pageWidth {
		r = pageWidth
	}
	if bottom > pageHeight {
		bottom = pageHeight
	}
	return geometry.BBox{Left: l, Top: top, Right: r, Bottom: bottom, Origin: bbox.Origin}
}

// Preprocess crops page to bbox (if non-zero), resizes to ImageSize x
// ImageSize, and returns a normalized CHW tensor with batch dimension 1.
func (p *CodeFormulaPreprocessor) Preprocess(page image.Image, bbox image.Rectangle) (Tensor, error) {
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

	dst := image.NewRGBA(image.Rect(0, 0, p.ImageSize, p.ImageSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	pix := make([]uint8, p.ImageSize*p.ImageSize*3)
	for y := 0; y < p.ImageSize; y++ {
		for x := 0; x < p.ImageSize; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			base := (y*p.ImageSize + x) * 3
			pix[base] = uint8(r >> 8)
			pix[base+1] = uint8(g >> 8)
			pix[base+2] = uint8(b >> 8)
		}
	}

	data := hwcToCHWNormalized(pix, p.ImageSize, p.ImageSize, 3, p.Mean, p.Std)
	return Tensor{Data: data, Shape: []int64{1, 3, int64(p.ImageSize), int64(p.ImageSize)}}, nil
}

// PreprocessBatch preprocesses multiple crops into a single batched
// tensor, one region per image/bbox pair.
func (p *CodeFormulaPreprocessor) PreprocessBatch(pages []image.Image, bboxes []image.Rectangle) (Tensor, error) {
	if len(pages) == 0 {
		return Tensor{}, docerrors.Preprocessing(0, "cannot preprocess an empty batch")
	}
	if len(bboxes) != len(pages) {
		return Tensor{}, docerrors.Preprocessing(0, "bboxes length must match images length")
	}

	single := 3 * p.ImageSize * p.ImageSize
	data := make([]float32, len(pages)*single)
	for i := range pages {
		t, err := p.Preprocess(pages[i], bboxes[i])
		if err != nil {
			return Tensor{}, err
		}
		copy(data[i*single:(i+1)*single], t.Data)
	}

	return Tensor{Data: data, Shape: []int64{int64(len(pages)), 3, int64(p.ImageSize), int64(p.ImageSize)}}, nil
}
