//go:build ocr_tesseract && cgo

// Package ocr's Tesseract backend is an alternative Engine for
// deployments that prefer a mature, pretrained OCR engine over the
// cascade's ONNX models. Build with -tags ocr_tesseract to enable it;
// see tesseract_stub.go for the default no-cgo build.
package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/geometry"
)

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// tesseractEngine wraps a gosseract.Client as an Engine, recognizing a
// whole region in one call rather than running the three-model
// detector/orientation/recognizer cascade.
type tesseractEngine struct {
	languages []string
}

// NewTesseractEngine builds a Tesseract-backed Engine for the given
// language codes (e.g. "eng", "deu").
func NewTesseractEngine(languages ...string) Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &tesseractEngine{languages: languages}
}

func (e *tesseractEngine) RecognizeRegion(ctx context.Context, page image.Image, region image.Rectangle) ([]cell.TextCell, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return nil, docerrors.ModelLoad("tesseract", err)
	}

	crop := cropImage(page, region)
	pngBytes, err := encodePNG(crop)
	if err != nil {
		return nil, docerrors.Preprocessing(0, "encoding OCR crop: "+err.Error())
	}
	if err := client.SetImageFromBytes(pngBytes); err != nil {
		return nil, docerrors.Inference("tesseract", 0, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, docerrors.Inference("tesseract", 0, err)
	}

	cells := make([]cell.TextCell, 0, len(boxes))
	for _, b := range boxes {
		cells = append(cells, cell.TextCell{
			Text: b.Word,
			BBox: geometry.NewBBox(
				float64(region.Min.X+b.Box.Min.X),
				float64(region.Min.Y+b.Box.Min.Y),
				float64(region.Min.X+b.Box.Max.X),
				float64(region.Min.Y+b.Box.Max.Y),
				geometry.TopLeft,
			),
			Source:     cell.SourceOCR,
			Confidence: b.Confidence / 100.0,
		})
	}
	return cells, nil
}
