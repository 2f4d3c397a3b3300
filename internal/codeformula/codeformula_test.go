package codeformula

import "testing"

func TestPromptForCode(t *testing.T) {
	got, err := PromptFor(LabelCode)
	if err != nil {
		t.Fatalf("PromptFor(code) error = %v", err)
	}
	want := "<|start_of_role|>user:<image><code><end_of_utterance>\nassistant:"
	if got != want {
		t.Errorf("PromptFor(code) = %q, want %q", got, want)
	}
}

func TestPromptForFormula(t *testing.T) {
	got, err := PromptFor(LabelFormula)
	if err != nil {
		t.Fatalf("PromptFor(formula) error = %v", err)
	}
	if got != "<|start_of_role|>user:<image><formula><end_of_utterance>\nassistant:" {
		t.Errorf("unexpected prompt: %q", got)
	}
}

func TestPromptForRejectsUnknownLabel(t *testing.T) {
	if _, err := PromptFor("nonsense"); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestPostProcessTruncatesAtEndOfUtterance(t *testing.T) {
	got := PostProcess("function foo() {}<end_of_utterance>extra text")
	if got.Text != "function foo() {}" {
		t.Errorf("Text = %q, want %q", got.Text, "function foo() {}")
	}
	if got.Language != "" {
		t.Errorf("Language = %q, want empty", got.Language)
	}
}

func TestPostProcessStripsClosingTags(t *testing.T) {
	got := PostProcess("</code>some code</code>")
	if got.Text != "some code" {
		t.Errorf("Text = %q, want %q", got.Text, "some code")
	}
}

func TestPostProcessStripsLocationToken(t *testing.T) {
	got := PostProcess("<loc_0><loc_0><loc_500><loc_500>x = 1")
	if got.Text != "x = 1" {
		t.Errorf("Text = %q, want %q", got.Text, "x = 1")
	}
}

func TestPostProcessExtractsLanguage(t *testing.T) {
	got := PostProcess("<_JavaScript_> function add(a, b) { return a + b; }")
	if got.Language != "JavaScript" {
		t.Errorf("Language = %q, want %q", got.Language, "JavaScript")
	}
	if got.Text != "function add(a, b) { return a + b; }" {
		t.Errorf("Text = %q, want normalized spacing", got.Text)
	}
}

func TestNormalizeCodeSpacing(t *testing.T) {
	cases := map[string]string{
		"function add (a , b)":           "function add(a, b)",
		"console . log ( add (3 , 5) )":  "console . log( add(3, 5))",
		"def foo (x : int) :":            "def foo(x: int):",
		"function add(a, b) { return a + b; }": "function add(a, b) { return a + b; }",
	}
	for in, want := range cases {
		if got := normalizeCodeSpacing(in); got != want {
			t.Errorf("normalizeCodeSpacing(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractLanguageNoPrefix(t *testing.T) {
	lang, rest := extractLanguage("no language prefix")
	if lang != "" || rest != "no language prefix" {
		t.Errorf("extractLanguage = (%q, %q), want no-op", lang, rest)
	}
}

func TestExtractLanguageMalformed(t *testing.T) {
	lang, rest := extractLanguage("<_Invalid")
	if lang != "" || rest != "<_Invalid" {
		t.Errorf("extractLanguage = (%q, %q), want no-op for malformed prefix", lang, rest)
	}
}

func TestDecodeStripsSpecialTokens(t *testing.T) {
	vocab := []string{"", "x", " = ", "1", "<end_of_utterance>"}
	ids := []uint32{1, 2, 3, EOSTokenID}
	result, err := Decode(ids, vocab)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if result.Text != "x = 1" {
		t.Errorf("Text = %q, want %q", result.Text, "x = 1")
	}
}
