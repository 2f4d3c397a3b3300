package table

import (
	"testing"

	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/preprocess"
)

// vocab maps logit index -> Token for test fixtures, mirroring the
// structure model's fixed output vocabulary.
var vocab = []Token{TokenStart, TokenEnd, TokenFilledCell, TokenEmptyCell, TokenLeftSpan, TokenUpSpan, TokenCrossSpan, TokenNewLine, TokenColHeader, TokenRowHeader}

func oneHot(idx, width int) []float32 {
	row := make([]float32, width)
	row[idx] = 1
	return row
}

func logitsFor(tokens []Token) preprocess.Tensor {
	width := len(vocab)
	data := make([]float32, 0, len(tokens)*width)
	for _, tok := range tokens {
		idx := 0
		for i, v := range vocab {
			if v == tok {
				idx = i
				break
			}
		}
		data = append(data, oneHot(idx, width)...)
	}
	return preprocess.Tensor{Data: data, Shape: []int64{int64(len(tokens)), int64(width)}}
}

func TestDecodeTokensStripsStartAndStopsAtEnd(t *testing.T) {
	input := logitsFor([]Token{TokenStart, TokenFilledCell, TokenFilledCell, TokenNewLine, TokenEnd, TokenFilledCell})
	got := DecodeTokens(input, vocab)
	want := []Token{TokenFilledCell, TokenFilledCell, TokenNewLine}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBuildGrid2x2Simple(t *testing.T) {
	// fcel fcel nl fcel fcel nl -> a simple 2x2 grid, no spans.
	tokens := []Token{TokenFilledCell, TokenFilledCell, TokenNewLine, TokenFilledCell, TokenFilledCell, TokenNewLine}
	resolved, rows, cols := BuildGrid(tokens)
	if rows != 2 || cols != 2 {
		t.Fatalf("rows,cols = %d,%d, want 2,2", rows, cols)
	}
	if len(resolved) != 4 {
		t.Fatalf("len(resolved) = %d, want 4", len(resolved))
	}
}

func TestBuildGridHorizontalSpan(t *testing.T) {
	// fcel lcel nl: one cell spanning two columns in row 0.
	tokens := []Token{TokenFilledCell, TokenLeftSpan, TokenNewLine}
	resolved, rows, cols := BuildGrid(tokens)
	if len(resolved) != 1 {
		t.Fatalf("len(resolved) = %d, want 1", len(resolved))
	}
	if resolved[0].colEnd-resolved[0].col != 2 {
		t.Errorf("colspan = %d, want 2", resolved[0].colEnd-resolved[0].col)
	}
	if cols != 2 || rows != 1 {
		t.Errorf("rows,cols = %d,%d, want 1,2", rows, cols)
	}
}

func TestBuildGridVerticalSpan(t *testing.T) {
	// row0: fcel; row1: ucel -> one cell spanning two rows in column 0.
	tokens := []Token{TokenFilledCell, TokenNewLine, TokenUpSpan, TokenNewLine}
	resolved, rows, _ := BuildGrid(tokens)
	if len(resolved) != 1 {
		t.Fatalf("len(resolved) = %d, want 1", len(resolved))
	}
	if resolved[0].rowEnd-resolved[0].row != 2 {
		t.Errorf("rowspan = %d, want 2", resolved[0].rowEnd-resolved[0].row)
	}
	if rows != 2 {
		t.Errorf("rows = %d, want 2", rows)
	}
}

func TestAttachBBoxesRejectsTooFewBoxes(t *testing.T) {
	resolved, _, _ := BuildGrid([]Token{TokenFilledCell, TokenFilledCell, TokenNewLine})
	_, err := AttachBBoxes(resolved, 1, 2, nil, nil)
	if err == nil {
		t.Error("expected error when boxes are missing")
	}
}

func TestDecodeBoxesRescalesToTableBBox(t *testing.T) {
	tableBBox := geometry.NewBBox(100, 100, 300, 300, geometry.TopLeft)
	// one box centered in the table, half width/height.
	boxTensor := preprocess.Tensor{Data: []float32{0.5, 0.5, 0.5, 0.5}, Shape: []int64{1, 4}}
	boxes := decodeBoxes(boxTensor, tableBBox)
	if len(boxes) != 1 {
		t.Fatalf("len(boxes) = %d, want 1", len(boxes))
	}
	got := boxes[0]
	if got.Left < 100 || got.Right > 300 {
		t.Errorf("box %+v escapes table bounds %+v", got, tableBBox)
	}
}

func TestDecodeEndToEnd(t *testing.T) {
	tokenLogits := logitsFor([]Token{TokenFilledCell, TokenFilledCell, TokenNewLine})
	boxTensor := preprocess.Tensor{
		Data:  []float32{0.25, 0.5, 0.4, 0.8, 0.75, 0.5, 0.4, 0.8},
		Shape: []int64{2, 4},
	}
	tableBBox := geometry.NewBBox(0, 0, 200, 100, geometry.TopLeft)

	got, err := Decode(tokenLogits, vocab, boxTensor, tableBBox, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Rows != 1 || got.Cols != 2 {
		t.Errorf("Rows,Cols = %d,%d, want 1,2", got.Rows, got.Cols)
	}
	if len(got.Cells) != 2 {
		t.Fatalf("len(Cells) = %d, want 2", len(got.Cells))
	}
}
