package inference

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/preprocess"
)

// checkpoint is a recorded output tensor (name, shape, data) used by
// DenseBackend: a lightweight stand-in for a real ONNX graph so
// pipeline wiring and C7's deterministic logic can be tested without an
// ONNX Runtime installation.
type checkpoint struct {
	OutputName string    `json:"output_name"`
	Shape      []int64   `json:"shape"`
	Data       []float32 `json:"data"`
}

// DenseBackend is a Backend implementation that replays fixed outputs
// loaded from a JSON checkpoint file per model, instead of running a
// real neural network. It exists for integration tests of C5-C11 that
// need a deterministic, fast stand-in for C4.
type DenseBackend struct {
	mu          sync.RWMutex
	checkpoints map[ModelName][]checkpoint
}

// NewDenseBackend constructs an empty DenseBackend; checkpoints are
// attached via Load.
func NewDenseBackend() *DenseBackend {
	return &DenseBackend{checkpoints: make(map[ModelName][]checkpoint)}
}

// Load reads a JSON-encoded []checkpoint fixture from modelPath and
// registers it under modelName.
func (b *DenseBackend) Load(ctx context.Context, modelName string, modelPath string) error {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return docerrors.ModelLoad(modelName, err)
	}
	var cps []checkpoint
	if err := json.Unmarshal(data, &cps); err != nil {
		return docerrors.ModelLoad(modelName, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoints[ModelName(modelName)] = cps
	return nil
}

// LoadFixture registers an in-memory fixture directly, for tests that
// build expected outputs in Go rather than from a file.
func (b *DenseBackend) LoadFixture(modelName ModelName, outputName string, tensor preprocess.Tensor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoints[modelName] = append(b.checkpoints[modelName], checkpoint{
		OutputName: outputName,
		Shape:      tensor.Shape,
		Data:       tensor.Data,
	})
}

// Run returns the registered checkpoint outputs for modelName,
// ignoring the actual input values (this backend is fixture-driven,
// not computed).
func (b *DenseBackend) Run(ctx context.Context, modelName string, inputs map[string]preprocess.Tensor) (map[string]preprocess.Tensor, error) {
	b.mu.RLock()
	cps, ok := b.checkpoints[ModelName(modelName)]
	b.mu.RUnlock()
	if !ok {
		return nil, docerrors.Inference(modelName, 0, errNoFixture(modelName))
	}

	out := make(map[string]preprocess.Tensor, len(cps))
	for _, cp := range cps {
		out[cp.OutputName] = preprocess.Tensor{Data: cp.Data, Shape: cp.Shape}
	}
	return out, nil
}

// Unload removes modelName's fixture.
func (b *DenseBackend) Unload(modelName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.checkpoints, ModelName(modelName))
	return nil
}

// Close clears every registered fixture.
func (b *DenseBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoints = make(map[ModelName][]checkpoint)
	return nil
}

type fixtureError string

func (e fixtureError) Error() string { return string(e) }

func errNoFixture(modelName string) error {
	return fixtureError("no fixture registered for model: " + modelName)
}
