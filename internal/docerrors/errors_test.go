package docerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"config matches IsConfig", Config("bad resolution"), IsConfig, true},
		{"config does not match IsIO", Config("bad resolution"), IsIO, false},
		{"model load matches IsModelLoad", ModelLoad("layout-v2", errors.New("404")), IsModelLoad, true},
		{"preprocessing matches IsPreprocessing", Preprocessing(3, "zero-size image"), IsPreprocessing, true},
		{"inference matches IsInference", Inference("ocr-recognizer", 1, errors.New("boom")), IsInference, true},
		{"assembly matches IsAssembly", Assembly(2, "orphan with no cells"), IsAssembly, true},
		{"io matches IsIO", IO(errors.New("disk full")), IsIO, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.pred(c.err); got != c.want {
				t.Errorf("predicate = %v, want %v", got, c.want)
			}
		})
	}
}

func TestPageScoped(t *testing.T) {
	pageScoped := []error{
		Preprocessing(1, "x"),
		Inference("m", 1, nil),
		Assembly(1, "x"),
	}
	for _, err := range pageScoped {
		if !PageScoped(err) {
			t.Errorf("%v: want page-scoped", err)
		}
	}

	documentScoped := []error{
		Config("x"),
		ModelLoad("m", nil),
		IO(errors.New("x")),
	}
	for _, err := range documentScoped {
		if PageScoped(err) {
			t.Errorf("%v: want document-scoped", err)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := ModelLoad("layout-v2", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}

	var target *Error
	if !errors.As(err, &target) {
		t.Fatalf("errors.As failed to match *Error")
	}
	if target.Model != "layout-v2" {
		t.Errorf("Model = %q, want layout-v2", target.Model)
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("socket closed")
	err := Inference("ocr-detector", 7, cause)
	wrapped := fmt.Errorf("page 7 failed: %w", err)

	if !IsInference(wrapped) {
		t.Errorf("IsInference should see through fmt.Errorf wrapping")
	}
	if !PageScoped(wrapped) {
		t.Errorf("PageScoped should see through fmt.Errorf wrapping")
	}
}

func TestErrorMessages(t *testing.T) {
	if got := Config("resolution must be >= 224").Error(); got == "" {
		t.Error("expected non-empty message")
	}
	err := ModelLoad("table-structure", errors.New("checksum mismatch"))
	want := "failed to load model: table-structure: checksum mismatch"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
