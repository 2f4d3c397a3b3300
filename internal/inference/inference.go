// Package inference defines the uniform adapter (C4) that every model
// family — layout, OCR (3 models), table structure, code/formula —
// runs its forward pass through. Concrete backends (ONNX, or a
// deterministic in-memory backend for tests) implement Backend; callers
// never depend on a specific runtime.
package inference

import (
	"context"

	"github.com/docpipeline/core/internal/preprocess"
)

// Backend runs a forward pass for a named model, given its input
// tensor(s), and returns the raw output tensor(s). Implementations must
// be safe for concurrent use by multiple goroutines once Load returns,
// matching the pipeline's per-page worker pool (§5).
type Backend interface {
	// Load prepares the named model for inference (parses the ONNX
	// graph, allocates a session, etc). Calling Load twice for the same
	// modelName must be a cheap no-op (session cache hit).
	Load(ctx context.Context, modelName string, modelPath string) error

	// Run executes modelName's forward pass on inputs, keyed by the
	// model's expected input tensor names, and returns outputs keyed by
	// output tensor names.
	Run(ctx context.Context, modelName string, inputs map[string]preprocess.Tensor) (map[string]preprocess.Tensor, error)

	// Unload releases a model's session resources. Safe to call on a
	// model that was never loaded.
	Unload(modelName string) error

	// Close releases all sessions and the backend's runtime environment.
	Close() error
}

// ModelName identifies one of the pipeline's fixed model roles. Backends
// key their session cache by this, not by file path, so two pages
// requesting the same model concurrently share one loaded session.
type ModelName string

const (
	ModelLayout          ModelName = "layout"
	ModelOCRDetector     ModelName = "ocr_detector"
	ModelOCROrientation  ModelName = "ocr_orientation"
	ModelOCRRecognizer   ModelName = "ocr_recognizer"
	ModelTableStructure  ModelName = "table_structure"
	ModelCodeFormula     ModelName = "code_formula"
)
