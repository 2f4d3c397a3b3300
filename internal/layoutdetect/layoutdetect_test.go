package layoutdetect

import (
	"testing"

	"github.com/docpipeline/core/internal/preprocess"
)

func outputs(boxes, scores, labels []float32) map[string]preprocess.Tensor {
	return map[string]preprocess.Tensor{
		"boxes":  {Data: boxes, Shape: []int64{int64(len(scores)), 4}},
		"scores": {Data: scores, Shape: []int64{int64(len(scores))}},
		"labels": {Data: labels, Shape: []int64{int64(len(scores))}},
	}
}

func TestDecodeFiltersLowConfidence(t *testing.T) {
	out := outputs(
		[]float32{0.5, 0.5, 0.2, 0.2, 0.5, 0.5, 0.2, 0.2},
		[]float32{0.9, 0.1},
		[]float32{0, 0},
	)
	got := Decode(out, 1000, 1000, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (low-confidence box dropped)", len(got))
	}
}

func TestDecodeDropsUnknownClass(t *testing.T) {
	out := outputs(
		[]float32{0.5, 0.5, 0.2, 0.2},
		[]float32{0.9},
		[]float32{999},
	)
	got := Decode(out, 1000, 1000, DefaultConfig())
	if len(got) != 0 {
		t.Fatalf("len(got) = %d, want 0 for unknown class id", len(got))
	}
}

func TestNMSSuppressesOverlapping(t *testing.T) {
	// Two near-identical boxes of the same class; only the higher-score
	// one should survive.
	out := outputs(
		[]float32{0.5, 0.5, 0.3, 0.3, 0.51, 0.51, 0.3, 0.3},
		[]float32{0.9, 0.8},
		[]float32{0, 0},
	)
	got := Decode(out, 1000, 1000, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 after NMS", len(got))
	}
	if got[0].Confidence != float64(float32(0.9)) {
		t.Errorf("surviving box confidence = %v, want 0.9 (higher score)", got[0].Confidence)
	}
}

func TestNMSSuppressesAcrossClasses(t *testing.T) {
	out := outputs(
		[]float32{0.5, 0.5, 0.3, 0.3, 0.5, 0.5, 0.3, 0.3},
		[]float32{0.9, 0.8},
		[]float32{0, 6}, // text vs table, fully overlapping
	)
	got := Decode(out, 1000, 1000, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (class-agnostic NMS suppresses the lower-score table)", len(got))
	}
	if got[0].Label != LabelText {
		t.Errorf("surviving label = %v, want %v (higher score)", got[0].Label, LabelText)
	}
}

func TestDecodeSortedByConfidence(t *testing.T) {
	out := outputs(
		[]float32{0.2, 0.2, 0.1, 0.1, 0.8, 0.8, 0.1, 0.1},
		[]float32{0.4, 0.95},
		[]float32{0, 1},
	)
	got := Decode(out, 1000, 1000, DefaultConfig())
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Confidence < got[1].Confidence {
		t.Error("expected descending confidence order")
	}
}
