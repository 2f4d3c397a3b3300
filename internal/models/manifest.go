// Package models is the manifest of known model artifacts the pipeline
// can load: their stable names (matching inference.ModelName), default
// download locations, and the on-disk filename each resolves to.
// Model weights themselves are configuration, not part of the core
// logic (spec §6) — this package names them, it does not embed them.
package models

import "path/filepath"

// Artifact describes one downloadable model file.
type Artifact struct {
	// Name matches an inference.ModelName constant.
	Name string
	// URL is the default HuggingFace Hub resolve URL for the artifact.
	URL string
	// FileName is the name the artifact is stored under once fetched.
	FileName string
	// SHA256 pins the expected checksum when known; empty means
	// unchecked (some HF repos rotate quantized exports without
	// publishing a stable hash).
	SHA256 string
}

// Manifest is the closed set of model artifacts the pipeline knows how
// to fetch, keyed by the same ModelName values the inference adapter's
// session cache uses.
var Manifest = map[string]Artifact{
	"layout": {
		Name:     "layout",
		URL:      "https://huggingface.co/wybxc/DocLayout-YOLO-DocStructBench-onnx/resolve/main/doclayout_yolo_docstructbench_imgsz1024.onnx",
		FileName: "doclayout_yolo.onnx",
	},
	"ocr_detector": {
		Name:     "ocr_detector",
		URL:      "https://huggingface.co/docling-project/docling-ocr/resolve/main/detector.onnx",
		FileName: "ocr_detector.onnx",
	},
	"ocr_orientation": {
		Name:     "ocr_orientation",
		URL:      "https://huggingface.co/docling-project/docling-ocr/resolve/main/orientation.onnx",
		FileName: "ocr_orientation.onnx",
	},
	"ocr_recognizer": {
		Name:     "ocr_recognizer",
		URL:      "https://huggingface.co/docling-project/docling-ocr/resolve/main/recognizer.onnx",
		FileName: "ocr_recognizer.onnx",
	},
	"table_structure": {
		Name:     "table_structure",
		URL:      "https://huggingface.co/ds4sd/docling-models/resolve/main/model_artifacts/tableformer/accurate/tableformer_accurate.safetensors",
		FileName: "table_structure.safetensors",
	},
	"code_formula": {
		Name:     "code_formula",
		URL:      "https://huggingface.co/ds4sd/CodeFormula/resolve/main/code_formula.onnx",
		FileName: "code_formula.onnx",
	},
}

// PathFor returns the path an artifact should live at under baseDir.
func PathFor(baseDir, name string) string {
	a, ok := Manifest[name]
	if !ok {
		return filepath.Join(baseDir, name)
	}
	return filepath.Join(baseDir, a.FileName)
}

// Lookup returns the manifest entry for a model name and whether it is
// a known artifact.
func Lookup(name string) (Artifact, bool) {
	a, ok := Manifest[name]
	return a, ok
}
