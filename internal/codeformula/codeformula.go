// Package codeformula decodes the Idefics3-style code/formula model's
// generated token stream into clean source text or LaTeX, extracting
// and tagging the leading language hint the model emits for code
// regions (C10).
package codeformula

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/preprocess"
)

// Special token IDs, matching the model's fixed vocabulary.
const (
	ImageTokenID uint32 = 100270
	BOSTokenID   uint32 = 100264
	EOSTokenID   uint32 = 100338
	PadTokenID   uint32 = 100256
)

// Label selects which chat-template query the model was prompted with,
// and therefore which post-processing applies.
type Label string

const (
	LabelCode    Label = "code"
	LabelFormula Label = "formula"
)

var locationToken = "<loc_0><loc_0><loc_500><loc_500>"

// Result is the decoded, cleaned output of one code/formula region.
type Result struct {
	Text     string
	Language string // leading language hint: a BCP-47 tag when x/text/language parses it, else the raw name; empty when no hint
}

// PromptFor builds the chat-template prompt the model expects,
// mirroring the reference template exactly: "<|start_of_role|>user:
// <image><code|formula><end_of_utterance>\nassistant:".
func PromptFor(label Label) (string, error) {
	var query string
	switch label {
	case LabelCode:
		query = "<code>"
	case LabelFormula:
		query = "<formula>"
	default:
		return "", docerrors.Config("code/formula label must be \"code\" or \"formula\"")
	}
	return "<|start_of_role|>user:<image>" + query + "<end_of_utterance>\nassistant:", nil
}

// Decode turns the model's generated token IDs into text via the
// caller-supplied vocabulary (index -> token string, matching the
// ONNX/tokenizer export), then applies PostProcess.
func Decode(tokenIDs []uint32, vocab []string) (Result, error) {
	var text strings.Builder
	for _, id := range tokenIDs {
		if id == EOSTokenID || id == uint32(BOSTokenID) {
			continue
		}
		if int(id) < len(vocab) {
			text.WriteString(vocab[id])
		}
	}
	return PostProcess(text.String()), nil
}

// PostProcess cleans a raw decoded string the way the reference
// tokenizer does: truncate at the end-of-utterance marker, strip
// closing tags and the fixed no-op location token, extract a leading
// "<_Language_>" prefix into a tagged language, and normalize code
// spacing around punctuation.
func PostProcess(text string) Result {
	cleaned := text
	if idx := strings.Index(cleaned, "<end_of_utterance>"); idx >= 0 {
		cleaned = cleaned[:idx]
	}

	for _, tok := range []string{"</code>", "</formula>", locationToken} {
		cleaned = strings.ReplaceAll(cleaned, tok, "")
	}
	cleaned = strings.TrimLeft(cleaned, " \t\n")

	lang, rest := extractLanguage(cleaned)
	if lang != "" {
		cleaned = strings.TrimLeft(rest, " \t\n")
	}

	cleaned = normalizeCodeSpacing(cleaned)

	return Result{Text: cleaned, Language: lang}
}

// extractLanguage matches a leading "<_Language_>" marker and strips
// it, returning the canonicalized BCP-47 tag (best-effort; an
// unrecognized name is still returned raw rather than dropped, since
// the enrichment is still useful even without language-tag
// canonicalization) and the remaining text.
func extractLanguage(text string) (lang string, rest string) {
	if !strings.HasPrefix(text, "<_") {
		return "", text
	}
	end := strings.Index(text, "_>")
	if end < 2 {
		return "", text
	}
	name := text[2:end]
	if strings.ContainsAny(name, "<>") || name == "" {
		return "", text
	}
	return canonicalizeLanguage(name), text[end+2:]
}

// canonicalizeLanguage maps a free-form language name (as emitted by
// the model: "JavaScript", "Python", "Rust", ...) to a BCP-47 tag when
// golang.org/x/text/language recognizes it, falling back to the raw
// name for languages the BCP-47 registry doesn't cover (most
// programming languages aren't natural languages, so this is a
// best-effort convenience, not a guarantee).
func canonicalizeLanguage(name string) string {
	tag, err := language.Parse(programmingToNaturalHint(name))
	if err != nil {
		return name
	}
	return tag.String()
}

// programmingToNaturalHint maps a handful of programming-language
// names to the empty string (so canonicalizeLanguage keeps the raw
// name), and otherwise passes the name through for
// language.Parse's best-effort BCP-47 lookup (e.g. it resolves
// "english"/"en" style hints used by some formula-language prompts).
func programmingToNaturalHint(name string) string {
	switch strings.ToLower(name) {
	case "python", "javascript", "rust", "go", "java", "c", "c++", "c#", "ruby", "php", "sql", "bash", "shell", "html", "css", "json", "yaml", "xml", "typescript", "kotlin", "swift", "scala", "r", "latex":
		return "" // not a natural language; language.Parse("") errors, so canonicalizeLanguage falls back to the raw name
	default:
		return name
	}
}

// normalizeCodeSpacing removes spaces before closing/opening
// punctuation the model tends to over-space, matching the Python
// reference implementation's formatting.
func normalizeCodeSpacing(text string) string {
	result := text
	for _, punct := range []string{"(", ")", "[", "]", ",", ";"} {
		result = strings.ReplaceAll(result, " "+punct, punct)
	}
	result = strings.ReplaceAll(result, " :", ":")
	return result
}

// DecodeFromLogits runs greedy argmax decoding over a [T, V] logits
// tensor (one row per generation step) before delegating to Decode —
// the shape the ONNX backend's decoder head actually returns.
func DecodeFromLogits(logits preprocess.Tensor, vocab []string) (Result, error) {
	if len(logits.Data) == 0 || len(logits.Shape) < 2 {
		return Result{}, docerrors.Inference("code_formula", 0, nil)
	}
	timesteps := int(logits.Shape[0])
	width := int(logits.Shape[1])

	ids := make([]uint32, 0, timesteps)
	for t := 0; t < timesteps; t++ {
		base := t * width
		best, bestVal := 0, logits.Data[base]
		for v := 1; v < width; v++ {
			if logits.Data[base+v] > bestVal {
				best, bestVal = v, logits.Data[base+v]
			}
		}
		id := uint32(best)
		if id == EOSTokenID {
			break
		}
		ids = append(ids, id)
	}
	return Decode(ids, vocab)
}
