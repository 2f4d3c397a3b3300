package inference

import (
	"context"
	"testing"

	"github.com/docpipeline/core/internal/preprocess"
)

func TestDenseBackendRoundTrip(t *testing.T) {
	b := NewDenseBackend()
	b.LoadFixture(ModelLayout, "boxes", preprocess.Tensor{
		Data:  []float32{0, 0, 10, 10},
		Shape: []int64{1, 4},
	})

	ctx := context.Background()
	out, err := b.Run(ctx, string(ModelLayout), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	boxes, ok := out["boxes"]
	if !ok {
		t.Fatal("expected 'boxes' output")
	}
	if len(boxes.Data) != 4 {
		t.Errorf("len(Data) = %d, want 4", len(boxes.Data))
	}
}

func TestDenseBackendMissingModel(t *testing.T) {
	b := NewDenseBackend()
	ctx := context.Background()
	if _, err := b.Run(ctx, "nonexistent", nil); err == nil {
		t.Error("expected error for unregistered model")
	}
}

func TestDenseBackendUnloadAndClose(t *testing.T) {
	b := NewDenseBackend()
	b.LoadFixture(ModelOCRDetector, "probability_map", preprocess.Tensor{Data: []float32{1}, Shape: []int64{1}})

	if err := b.Unload(string(ModelOCRDetector)); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	ctx := context.Background()
	if _, err := b.Run(ctx, string(ModelOCRDetector), nil); err == nil {
		t.Error("expected error after unload")
	}

	b.LoadFixture(ModelLayout, "boxes", preprocess.Tensor{Data: []float32{1}, Shape: []int64{1}})
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := b.Run(ctx, string(ModelLayout), nil); err == nil {
		t.Error("expected error after close")
	}
}

var _ Backend = (*DenseBackend)(nil)
var _ Backend = (*ONNXBackend)(nil)
