package inference

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/logger"
	"github.com/docpipeline/core/internal/preprocess"
)

// ioMetadata names the input/output tensor names ONNX Runtime expects
// for each of the pipeline's fixed model roles. These come from each
// model's exported graph signature, not from the caller, so Backend.Run
// only needs to supply tensor data keyed consistently with this table.
var ioMetadata = map[ModelName]struct {
	Inputs  []string
	Outputs []string
}{
	ModelLayout:         {Inputs: []string{"images"}, Outputs: []string{"boxes", "scores", "labels"}},
	ModelOCRDetector:    {Inputs: []string{"x"}, Outputs: []string{"probability_map"}},
	ModelOCROrientation: {Inputs: []string{"x"}, Outputs: []string{"logits"}},
	ModelOCRRecognizer:  {Inputs: []string{"x"}, Outputs: []string{"logits"}},
	ModelTableStructure: {Inputs: []string{"pixel_values"}, Outputs: []string{"tags", "cell_bboxes"}},
	ModelCodeFormula:    {Inputs: []string{"pixel_values"}, Outputs: []string{"token_ids"}},
}

type session struct {
	handle *ort.DynamicAdvancedSession
}

// ONNXBackend runs inference through the ONNX Runtime C API via
// github.com/yalue/onnxruntime_go, with one session per model kept
// alive in a process-wide cache (§5 "global session cache") so
// concurrent pages reuse it instead of re-parsing the graph.
type ONNXBackend struct {
	mu       sync.Mutex
	sessions map[ModelName]*session
	initOnce sync.Once
	initErr  error
}

// NewONNXBackend constructs an (unloaded) ONNX backend. SharedLibraryPath
// is passed to ort.SetSharedLibraryPath when non-empty, matching the
// platform-specific onnxruntime.so/dll/dylib location.
func NewONNXBackend(sharedLibraryPath string) *ONNXBackend {
	if sharedLibraryPath != "" {
		ort.SetSharedLibraryPath(sharedLibraryPath)
	}
	return &ONNXBackend{sessions: make(map[ModelName]*session)}
}

func (b *ONNXBackend) ensureEnv() error {
	b.initOnce.Do(func() {
		b.initErr = ort.InitializeEnvironment()
	})
	return b.initErr
}

// Load opens modelPath as an ONNX Runtime session registered under
// modelName, reusing an existing session if modelName was already
// loaded.
func (b *ONNXBackend) Load(ctx context.Context, modelName string, modelPath string) error {
	if err := b.ensureEnv(); err != nil {
		return docerrors.ModelLoad(modelName, err)
	}

	name := ModelName(modelName)
	meta, ok := ioMetadata[name]
	if !ok {
		return docerrors.Config("unknown model name: " + modelName)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.sessions[name]; exists {
		return nil
	}

	logger.Info("loading onnx model", logger.String("model", modelName), logger.String("path", modelPath))
	handle, err := ort.NewDynamicAdvancedSession(modelPath, meta.Inputs, meta.Outputs, nil)
	if err != nil {
		return docerrors.ModelLoad(modelName, err)
	}
	b.sessions[name] = &session{handle: handle}
	return nil
}

// Run executes modelName's forward pass. inputs must be keyed by the
// tensor names in ioMetadata; the returned map is keyed the same way
// for outputs.
func (b *ONNXBackend) Run(ctx context.Context, modelName string, inputs map[string]preprocess.Tensor) (map[string]preprocess.Tensor, error) {
	name := ModelName(modelName)
	meta, ok := ioMetadata[name]
	if !ok {
		return nil, docerrors.Config("unknown model name: " + modelName)
	}

	b.mu.Lock()
	sess, ok := b.sessions[name]
	b.mu.Unlock()
	if !ok {
		return nil, docerrors.Inference(modelName, 0, fmt.Errorf("model not loaded"))
	}

	inputTensors := make([]ort.ArbitraryTensor, len(meta.Inputs))
	for i, inName := range meta.Inputs {
		t, ok := inputs[inName]
		if !ok {
			return nil, docerrors.Inference(modelName, 0, fmt.Errorf("missing input tensor %q", inName))
		}
		ortTensor, err := ort.NewTensor(shapeOf(t.Shape), t.Data)
		if err != nil {
			return nil, docerrors.Inference(modelName, 0, err)
		}
		defer ortTensor.Destroy()
		inputTensors[i] = ortTensor
	}

	outputTensors := make([]ort.ArbitraryTensor, len(meta.Outputs))
	// Output shapes are unknown until the graph runs for dynamic-size
	// models (e.g. variable-width OCR recognizer output); nil lets ONNX
	// Runtime allocate them, matching DynamicAdvancedSession's contract.
	for i := range meta.Outputs {
		outputTensors[i] = nil
	}

	if err := sess.handle.Run(inputTensors, outputTensors); err != nil {
		return nil, docerrors.Inference(modelName, 0, err)
	}

	results := make(map[string]preprocess.Tensor, len(meta.Outputs))
	for i, outName := range meta.Outputs {
		ft, ok := outputTensors[i].(*ort.Tensor[float32])
		if !ok || ft == nil {
			return nil, docerrors.Inference(modelName, 0, fmt.Errorf("unexpected output tensor type for %q", outName))
		}
		results[outName] = preprocess.Tensor{Data: ft.GetData(), Shape: ft.GetShape()}
		ft.Destroy()
	}

	return results, nil
}

// Unload destroys modelName's session, if loaded.
func (b *ONNXBackend) Unload(modelName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := ModelName(modelName)
	sess, ok := b.sessions[name]
	if !ok {
		return nil
	}
	delete(b.sessions, name)
	return sess.handle.Destroy()
}

// Close releases every session and the shared ONNX Runtime environment.
func (b *ONNXBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for name, sess := range b.sessions {
		if err := sess.handle.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.sessions, name)
	}
	if err := ort.DestroyEnvironment(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func shapeOf(dims []int64) ort.Shape {
	return ort.NewShape(dims...)
}
