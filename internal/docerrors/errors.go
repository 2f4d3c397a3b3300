// Package docerrors defines the error taxonomy for the PDF understanding
// pipeline: configuration, model loading, preprocessing, inference,
// assembly, and I/O failures, each with distinct propagation semantics.
package docerrors

import "fmt"

// Code classifies an Error by the stage of the pipeline that raised it.
type Code string

const (
	// CodeConfig marks invalid configuration; user-fixable, never
	// reached once a pipeline is running with validated config.
	CodeConfig Code = "CONFIG"
	// CodeModelLoad marks a missing or corrupt model artifact; surfaces
	// at first use and is fatal for the whole pipeline.
	CodeModelLoad Code = "MODEL_LOAD"
	// CodePreprocessing marks bad image dimensions/channels; fatal for
	// the offending page only.
	CodePreprocessing Code = "PREPROCESSING"
	// CodeInference marks a backend runtime fault; fatal for the
	// offending page only.
	CodeInference Code = "INFERENCE"
	// CodeAssembly marks an invariant violation in cluster resolution
	// or page assembly; fatal for the page.
	CodeAssembly Code = "ASSEMBLY"
	// CodeIO marks a filesystem failure reading source or reference
	// data; bubbles up uncaught.
	CodeIO Code = "IO"
)

// Error is the pipeline's error type. It carries a Code for programmatic
// dispatch, a human message, optional named fields for context (e.g. the
// failing model name), and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Model   string // set for CodeModelLoad / CodeInference
	Page    int    // set when the error is page-scoped; 0 means document-level
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Model != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Message, e.Model, e.Cause)
	case e.Model != "":
		return fmt.Sprintf("%s: %s", e.Message, e.Model)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	default:
		return e.Message
	}
}

// Unwrap exposes the wrapped cause so errors.Is/As work across the taxonomy.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Config builds a ConfigError for user-fixable invalid options.
func Config(reason string) *Error {
	return &Error{Code: CodeConfig, Message: "invalid configuration: " + reason}
}

// ModelLoad builds a ModelLoadError for a named model artifact.
func ModelLoad(modelName string, cause error) *Error {
	return &Error{Code: CodeModelLoad, Message: "failed to load model", Model: modelName, Cause: cause}
}

// Preprocessing builds a PreprocessingError scoped to a page.
func Preprocessing(page int, reason string) *Error {
	return &Error{Code: CodePreprocessing, Message: "image preprocessing failed: " + reason, Page: page}
}

// Inference builds an InferenceError for a named model, scoped to a page.
func Inference(modelName string, page int, cause error) *Error {
	return &Error{Code: CodeInference, Message: "inference failed", Model: modelName, Page: page, Cause: cause}
}

// Assembly builds an AssemblyError scoped to a page.
func Assembly(page int, reason string) *Error {
	return &Error{Code: CodeAssembly, Message: "page assembly failed: " + reason, Page: page}
}

// IO wraps a filesystem error.
func IO(cause error) *Error {
	return &Error{Code: CodeIO, Message: "io error", Cause: cause}
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return hasCode(err, CodeConfig) }

// IsModelLoad reports whether err is a model-loading error.
func IsModelLoad(err error) bool { return hasCode(err, CodeModelLoad) }

// IsPreprocessing reports whether err is a preprocessing error.
func IsPreprocessing(err error) bool { return hasCode(err, CodePreprocessing) }

// IsInference reports whether err is an inference error.
func IsInference(err error) bool { return hasCode(err, CodeInference) }

// IsAssembly reports whether err is an assembly error.
func IsAssembly(err error) bool { return hasCode(err, CodeAssembly) }

// IsIO reports whether err is an I/O error.
func IsIO(err error) bool { return hasCode(err, CodeIO) }

// PageScoped reports whether err is fatal only for a single page rather
// than the whole document/pipeline, per the propagation rules in §7:
// preprocessing, inference, and assembly errors are page-scoped; config,
// model-load, and I/O errors are not.
func PageScoped(err error) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	switch e.Code {
	case CodePreprocessing, CodeInference, CodeAssembly:
		return true
	default:
		return false
	}
}

func hasCode(err error, code Code) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Code == code
}

// asError is a small local errors.As to avoid importing "errors" just for
// this one call site being duplicated across predicates.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
