//go:build !ocr_tesseract || !cgo

package ocr

import (
	"context"
	"errors"
	"image"

	"github.com/docpipeline/core/internal/cell"
)

// ErrTesseractNotAvailable is returned by the stub Tesseract engine;
// rebuild with -tags ocr_tesseract (and cgo enabled) to use the real one.
var ErrTesseractNotAvailable = errors.New("ocr: tesseract engine not available (build with -tags ocr_tesseract)")

type tesseractStub struct{}

// NewTesseractEngine returns a stub Engine when built without the
// ocr_tesseract build tag or without cgo.
func NewTesseractEngine(languages ...string) Engine {
	return &tesseractStub{}
}

func (e *tesseractStub) RecognizeRegion(ctx context.Context, page image.Image, region image.Rectangle) ([]cell.TextCell, error) {
	return nil, ErrTesseractNotAvailable
}
