package ocr

import (
	"image"
	"testing"

	"github.com/docpipeline/core/internal/preprocess"
)

func TestDecodeOrientationIdentity(t *testing.T) {
	logits := preprocess.Tensor{Data: []float32{0.9, 0.05, 0.03, 0.02}, Shape: []int64{1, 4}}
	if got := decodeOrientation(logits); got != 0 {
		t.Errorf("decodeOrientation = %d, want 0", got)
	}
}

func TestDecodeOrientation90(t *testing.T) {
	logits := preprocess.Tensor{Data: []float32{0.1, 0.9, 0.0, 0.0}, Shape: []int64{1, 4}}
	if got := decodeOrientation(logits); got != 90 {
		t.Errorf("decodeOrientation = %d, want 90", got)
	}
}

func TestCTCGreedyDecodeCollapsesRepeatsAndBlanks(t *testing.T) {
	// vocab: [blank, 'a', 'b'], timesteps spell blank,"aab" -> "ab" after
	// dropping the blank and collapsing consecutive repeats.
	logits := preprocess.Tensor{
		Data: []float32{
			1, 0, 0, // t0: blank (dropped)
			0, 1, 0, // t1: 'a'
			0, 1, 0, // t2: 'a' (repeat, collapsed)
			0, 0, 1, // t3: 'b'
		},
		Shape: []int64{4, 3},
	}
	text, conf := ctcGreedyDecode(logits, []rune{'a', 'b'})
	if text != "ab" {
		t.Errorf("ctcGreedyDecode text = %q, want %q", text, "ab")
	}
	if conf <= 0 {
		t.Errorf("ctcGreedyDecode confidence = %v, want > 0", conf)
	}
}

func TestCTCGreedyDecodeBlankSeparatesRepeats(t *testing.T) {
	// "a", blank, "a" -> "aa" (blank resets the repeat suppression).
	logits := preprocess.Tensor{
		Data: []float32{
			0, 1, 0,
			1, 0, 0,
			0, 1, 0,
		},
		Shape: []int64{3, 3},
	}
	text, _ := ctcGreedyDecode(logits, []rune{'a', 'b'})
	if text != "aa" {
		t.Errorf("ctcGreedyDecode text = %q, want %q", text, "aa")
	}
}

func TestCTCGreedyDecodeEmptyInput(t *testing.T) {
	text, conf := ctcGreedyDecode(preprocess.Tensor{}, nil)
	if text != "" || conf != 0 {
		t.Errorf("expected empty result for empty input, got %q, %v", text, conf)
	}
}

func TestDecodeDetectionsFindsRun(t *testing.T) {
	h, w := 4, 10
	data := make([]float32, h*w)
	for x := 2; x < 6; x++ {
		data[1*w+x] = 0.9
	}
	heatmap := preprocess.Tensor{Data: data, Shape: []int64{1, 1, int64(h), int64(w)}}
	region := image.Rect(0, 0, 100, 40)

	boxes := decodeDetections(heatmap, w, region, 0.3, 1)
	if len(boxes) == 0 {
		t.Fatal("expected at least one detected box")
	}
}

func TestDecodeDetectionsEmptyHeatmap(t *testing.T) {
	boxes := decodeDetections(preprocess.Tensor{}, 10, image.Rect(0, 0, 10, 10), 0.3, 1)
	if boxes != nil {
		t.Errorf("expected nil boxes for empty heatmap, got %v", boxes)
	}
}

func TestConfigValidateRejectsNonPositive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetectorSize = 0
	if err := cfg.validate(); err == nil {
		t.Error("expected validation error for non-positive detector size")
	}
}

func TestTesseractStubReturnsError(t *testing.T) {
	_, err := NewTesseractEngine("eng").RecognizeRegion(nil, nil, image.Rectangle{})
	if err == nil {
		// only meaningful under the default (non-cgo) build; if
		// ocr_tesseract+cgo is active this will hit the real client and
		// is expected to behave differently, so don't fail hard here.
		t.Skip("real tesseract engine active under build tag")
	}
}
