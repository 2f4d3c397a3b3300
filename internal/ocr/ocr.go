// Package ocr wraps the three-model OCR cascade (C8): a text-line
// detector, an orientation classifier, and a text recognizer, run in
// sequence over the cells a page's native text layer couldn't cover
// (scanned pages, or orphan raster regions routed to OCR by cascade
// resolution). A cgo-gated Tesseract engine is available as an
// alternative backend behind a build tag, mirroring the teacher's
// cgo-gated-with-stub pattern for its MuPDF bindings.
package ocr

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/inference"
	"github.com/docpipeline/core/internal/preprocess"
)

// Config tunes the three-model cascade.
type Config struct {
	DetectorSize      int
	OrientationSize   int
	RecognizerHeight  int
	DetectionFloor    float64 // heatmap probability threshold for a detected line
	MinBoxArea        float64 // pixel area below which a detected box is discarded as noise
}

// DefaultConfig mirrors the preprocessing defaults chosen for each stage.
func DefaultConfig() Config {
	return Config{
		DetectorSize:     preprocess.DefaultOCRDetectorSize,
		OrientationSize:  preprocess.DefaultOrientationSize,
		RecognizerHeight: 48,
		DetectionFloor:   0.3,
		MinBoxArea:       64,
	}
}

// Engine runs OCR over an image region and returns the recognized text
// cells. The ONNX three-model cascade and the optional Tesseract
// backend both implement this.
type Engine interface {
	RecognizeRegion(ctx context.Context, page image.Image, region image.Rectangle) ([]cell.TextCell, error)
}

// cascadeEngine is the default Engine: detector -> orientation ->
// recognizer, each a forward pass through the shared inference.Backend.
type cascadeEngine struct {
	backend inference.Backend
	cfg     Config
	charset []rune
}

// NewCascadeEngine builds the three-model OCR engine. charset is the
// recognizer's output vocabulary, indexed by logit position; index 0 is
// reserved for the CTC blank token.
func NewCascadeEngine(backend inference.Backend, charset []rune, cfg Config) (Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cascadeEngine{backend: backend, cfg: cfg, charset: charset}, nil
}

func (e *cascadeEngine) RecognizeRegion(ctx context.Context, page image.Image, region image.Rectangle) ([]cell.TextCell, error) {
	crop := cropImage(page, region)

	detectorInput, err := preprocess.OCRDetectorPreprocess(crop, e.cfg.DetectorSize)
	if err != nil {
		return nil, err
	}
	detectorOut, err := e.backend.Run(ctx, string(inference.ModelOCRDetector), map[string]preprocess.Tensor{"x": detectorInput})
	if err != nil {
		return nil, docerrors.Inference(string(inference.ModelOCRDetector), 0, err)
	}

	lineBoxes := decodeDetections(detectorOut["probability_map"], e.cfg.DetectorSize, region, e.cfg.DetectionFloor, e.cfg.MinBoxArea)

	var cells []cell.TextCell
	for _, box := range lineBoxes {
		lineCrop := cropImage(page, box)

		orientInput := preprocess.OrientationPreprocess(lineCrop)
		orientOut, err := e.backend.Run(ctx, string(inference.ModelOCROrientation), map[string]preprocess.Tensor{"x": orientInput})
		if err != nil {
			return nil, docerrors.Inference(string(inference.ModelOCROrientation), 0, err)
		}
		rotated := applyOrientation(lineCrop, decodeOrientation(orientOut["logits"]))

		recInput := preprocess.RecognizerPreprocess(rotated, e.cfg.RecognizerHeight)
		recOut, err := e.backend.Run(ctx, string(inference.ModelOCRRecognizer), map[string]preprocess.Tensor{"x": recInput})
		if err != nil {
			return nil, docerrors.Inference(string(inference.ModelOCRRecognizer), 0, err)
		}

		text, confidence := ctcGreedyDecode(recOut["logits"], e.charset)
		if text == "" {
			continue
		}

		cells = append(cells, cell.TextCell{
			Text:       text,
			BBox:       geometry.NewBBox(float64(box.Min.X), float64(box.Min.Y), float64(box.Max.X), float64(box.Max.Y), geometry.TopLeft),
			Source:     cell.SourceOCR,
			Confidence: confidence,
		})
	}

	return cells, nil
}

func cropImage(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}

// decodeDetections turns the detector's probability heatmap into line
// bounding boxes in the original page's coordinate space, using a
// row-run-length scan over thresholded cells rather than full connected
// components — sufficient for the cascade's rectangular text lines and
// deterministic without a flood-fill dependency.
func decodeDetections(heatmap preprocess.Tensor, detectorSize int, region image.Rectangle, floor, minArea float64) []image.Rectangle {
	if len(heatmap.Data) == 0 {
		return nil
	}

	h, w := detectorSize, detectorSize
	if len(heatmap.Shape) >= 2 {
		h = int(heatmap.Shape[len(heatmap.Shape)-2])
		w = int(heatmap.Shape[len(heatmap.Shape)-1])
	}

	scaleX := float64(region.Dx()) / float64(w)
	scaleY := float64(region.Dy()) / float64(h)

	var boxes []image.Rectangle
	for y := 0; y < h; y++ {
		runStart := -1
		for x := 0; x <= w; x++ {
			active := x < w && float64(heatmap.Data[y*w+x]) >= floor
			if active && runStart == -1 {
				runStart = x
			} else if !active && runStart != -1 {
				box := image.Rect(
					region.Min.X+int(float64(runStart)*scaleX),
					region.Min.Y+int(float64(y)*scaleY),
					region.Min.X+int(float64(x)*scaleX),
					region.Min.Y+int(float64(y+1)*scaleY),
				)
				if areaOf(box) >= minArea {
					boxes = append(boxes, box)
				}
				runStart = -1
			}
		}
	}

	boxes = mergeVerticallyAdjacent(boxes)
	sort.Slice(boxes, func(i, j int) bool {
		if boxes[i].Min.Y != boxes[j].Min.Y {
			return boxes[i].Min.Y < boxes[j].Min.Y
		}
		return boxes[i].Min.X < boxes[j].Min.X
	})
	return boxes
}

func areaOf(r image.Rectangle) float64 {
	return float64(r.Dx() * r.Dy())
}

// mergeVerticallyAdjacent merges row-run boxes whose X ranges overlap
// and whose Y ranges are adjacent, reconstructing multi-row text lines
// from the per-row scan above.
func mergeVerticallyAdjacent(boxes []image.Rectangle) []image.Rectangle {
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(boxes); i++ {
			for j := i + 1; j < len(boxes); j++ {
				if boxes[i].Min.Y <= boxes[j].Max.Y && boxes[j].Min.Y <= boxes[i].Max.Y &&
					boxes[i].Min.X < boxes[j].Max.X && boxes[j].Min.X < boxes[i].Max.X {
					boxes[i] = boxes[i].Union(boxes[j])
					boxes = append(boxes[:j], boxes[j+1:]...)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
	}
	return boxes
}

// decodeOrientation returns the rotation in degrees implied by the
// classifier's argmax logit: class 0,1,2,3 map to 0,90,180,270.
func decodeOrientation(logits preprocess.Tensor) int {
	if len(logits.Data) == 0 {
		return 0
	}
	best, bestVal := 0, logits.Data[0]
	for i, v := range logits.Data {
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return (best % 4) * 90
}

func applyOrientation(img image.Image, degrees int) image.Image {
	if degrees == 0 {
		return img
	}
	b := img.Bounds()
	switch degrees {
	case 90:
		dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(b.Max.Y-1-y, x, img.At(x, y))
			}
		}
		return dst
	case 180:
		dst := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
			}
		}
		return dst
	case 270:
		dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(y, b.Max.X-1-x, img.At(x, y))
			}
		}
		return dst
	default:
		return img
	}
}

// ctcGreedyDecode collapses a [T, C] logits tensor (time steps ×
// vocabulary, including a blank at index 0) into text by taking the
// per-step argmax, dropping repeats, and dropping blanks — the
// standard CTC greedy decoding rule.
func ctcGreedyDecode(logits preprocess.Tensor, charset []rune) (string, float64) {
	if len(logits.Data) == 0 || len(logits.Shape) < 2 {
		return "", 0
	}
	timesteps := int(logits.Shape[0])
	vocab := int(logits.Shape[1])
	if vocab == 0 || len(charset)+1 < vocab {
		return "", 0
	}

	var out []rune
	var confidenceSum float64
	var confidenceCount int
	prev := -1

	for t := 0; t < timesteps; t++ {
		base := t * vocab
		best, bestVal := 0, logits.Data[base]
		for c := 1; c < vocab; c++ {
			if logits.Data[base+c] > bestVal {
				best, bestVal = c, logits.Data[base+c]
			}
		}
		if best != 0 && best != prev {
			out = append(out, charset[best-1])
			confidenceSum += float64(bestVal)
			confidenceCount++
		}
		prev = best
	}

	if confidenceCount == 0 {
		return "", 0
	}
	return string(out), confidenceSum / float64(confidenceCount)
}

// validate checks a Config for sane values, returning a ConfigError
// otherwise.
func (c Config) validate() error {
	if c.DetectorSize <= 0 || c.OrientationSize <= 0 || c.RecognizerHeight <= 0 {
		return docerrors.Config(fmt.Sprintf("ocr stage sizes must be positive, got %+v", c))
	}
	return nil
}
