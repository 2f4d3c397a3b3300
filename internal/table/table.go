// Package table decodes the table-structure model's OTSL (Optimized
// Table Structure Language) token stream into a row/column grid of
// cells with bounding boxes (C9). Decoding proceeds in two passes: a
// greedy token-by-token walk builds the logical grid shape (which
// cells span which rows/columns), then the model's parallel bbox head
// output is zipped onto the non-continuation cells in emission order.
package table

import (
	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/docerrors"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/preprocess"
)

// Token is one OTSL vocabulary symbol.
type Token string

const (
	TokenFilledCell Token = "fcel" // new cell with content
	TokenEmptyCell  Token = "ecel" // new cell, no content
	TokenLeftSpan   Token = "lcel" // continuation of the cell to the left (horizontal span)
	TokenUpSpan     Token = "ucel" // continuation of the cell above (vertical span)
	TokenCrossSpan  Token = "xcel" // continuation of the cell both left and above (2D span)
	TokenNewLine    Token = "nl"   // end of row
	TokenColHeader  Token = "ched" // new cell, column header
	TokenRowHeader  Token = "rhed" // new cell, row header
	TokenSectionRow Token = "srow" // new cell, section/group row header
	TokenStart      Token = "start"
	TokenEnd        Token = "end"
)

var newCellTokens = map[Token]bool{
	TokenFilledCell: true,
	TokenEmptyCell:  true,
	TokenColHeader:  true,
	TokenRowHeader:  true,
	TokenSectionRow: true,
}

// Cell is one resolved table cell: its grid span, bounding box, header
// flag, and the merged text found inside it.
type Cell struct {
	RowStart, RowEnd int // [RowStart, RowEnd), RowEnd-RowStart >= 1
	ColStart, ColEnd int
	BBox             geometry.BBox
	Header           bool
	Empty            bool
	Text             string
}

// Structure is a decoded table: its row/column count and the resolved
// cells.
type Structure struct {
	Rows  int
	Cols  int
	Cells []Cell
}

// DecodeTokens greedily argmaxes a [T, V] logits tensor against vocab,
// stopping at the first "end" token (or at T steps if none is found).
func DecodeTokens(logits preprocess.Tensor, vocab []Token) []Token {
	if len(logits.Data) == 0 || len(logits.Shape) < 2 {
		return nil
	}
	timesteps := int(logits.Shape[0])
	width := int(logits.Shape[1])
	if width > len(vocab) {
		width = len(vocab)
	}

	tokens := make([]Token, 0, timesteps)
	for t := 0; t < timesteps; t++ {
		base := t * int(logits.Shape[1])
		best, bestVal := 0, logits.Data[base]
		for v := 1; v < width; v++ {
			if logits.Data[base+v] > bestVal {
				best, bestVal = v, logits.Data[base+v]
			}
		}
		tok := vocab[best]
		if tok == TokenEnd {
			break
		}
		if tok == TokenStart {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// gridCell tracks the logical grid position and current span extent a
// decoding step resolves to, before bboxes are attached.
type gridCell struct {
	row, col       int
	rowEnd, colEnd int // exclusive; grows as lcel/ucel/xcel extend the span
	header         bool
	sectionHeader  bool
	empty          bool
}

// BuildGrid walks the OTSL token stream and resolves each "new cell"
// token's row/column position, expanding span continuations (lcel,
// ucel, xcel) into the occupied grid cells they imply. Returns the
// resolved cells in emission order (matching the bbox head's output
// order) plus the grid's total row/column count.
func BuildGrid(tokens []Token) ([]gridCell, int, int) {
	var resolved []gridCell
	row, col := 0, 0

	// occupied tracks which (row,col) positions a prior cell already
	// claimed via span continuation, so a new cell always lands on the
	// next free column.
	occupied := map[[2]int]int{} // (row,col) -> index into resolved

	placeAt := func(r, c int) {
		occupied[[2]int{r, c}] = len(resolved) - 1
	}

	for _, tok := range tokens {
		switch {
		case tok == TokenNewLine:
			row++
			col = 0
			continue
		case newCellTokens[tok]:
			for occupiedAt(occupied, row, col) {
				col++
			}
			resolved = append(resolved, gridCell{
				row: row, col: col, rowEnd: row + 1, colEnd: col + 1,
				header:        tok == TokenColHeader || tok == TokenRowHeader,
				sectionHeader: tok == TokenSectionRow,
				empty:         tok == TokenEmptyCell,
			})
			placeAt(row, col)
			col++
		case tok == TokenLeftSpan:
			if idx, ok := lookupLeft(occupied, row, col); ok {
				extendSpanCol(resolved, idx, col)
				occupied[[2]int{row, col}] = idx
			}
			col++
		case tok == TokenUpSpan:
			if idx, ok := lookupUp(occupied, row, col); ok {
				extendSpanRow(resolved, idx, row)
				occupied[[2]int{row, col}] = idx
			}
			col++
		case tok == TokenCrossSpan:
			if idx, ok := lookupUp(occupied, row, col); ok {
				extendSpanRow(resolved, idx, row)
				extendSpanCol(resolved, idx, col)
				occupied[[2]int{row, col}] = idx
			}
			col++
		default:
			col++
		}
	}

	rows, cols := 0, 0
	for _, gc := range resolved {
		if gc.rowEnd > rows {
			rows = gc.rowEnd
		}
		if gc.colEnd > cols {
			cols = gc.colEnd
		}
	}
	return resolved, rows, cols
}

func occupiedAt(occupied map[[2]int]int, row, col int) bool {
	_, ok := occupied[[2]int{row, col}]
	return ok
}

func lookupLeft(occupied map[[2]int]int, row, col int) (int, bool) {
	idx, ok := occupied[[2]int{row, col - 1}]
	return idx, ok
}

func lookupUp(occupied map[[2]int]int, row, col int) (int, bool) {
	idx, ok := occupied[[2]int{row - 1, col}]
	return idx, ok
}

// extendSpanCol grows the owning cell's column span to cover col, the
// effect of an lcel/xcel continuation token.
func extendSpanCol(resolved []gridCell, idx, col int) {
	if col+1 > resolved[idx].colEnd {
		resolved[idx].colEnd = col + 1
	}
}

// extendSpanRow grows the owning cell's row span to cover row, the
// effect of a ucel/xcel continuation token.
func extendSpanRow(resolved []gridCell, idx, row int) {
	if row+1 > resolved[idx].rowEnd {
		resolved[idx].rowEnd = row + 1
	}
}

// AttachBBoxes zips the bbox head's output boxes onto the grid cells
// resolved by BuildGrid, in emission order, and attaches any text
// cells overlapping each resulting box.
func AttachBBoxes(resolved []gridCell, rows, cols int, boxes []geometry.BBox, textCells []cell.TextCell) (Structure, error) {
	if len(boxes) < len(resolved) {
		return Structure{}, docerrors.Assembly(0, "table bbox head returned fewer boxes than resolved cells")
	}

	out := make([]Cell, 0, len(resolved))
	for i, gc := range resolved {
		box := boxes[i]
		cells := cell.NewPool(textCells).Within(box, 0.5)
		out = append(out, Cell{
			RowStart: gc.row,
			RowEnd:   gc.rowEnd,
			ColStart: gc.col,
			ColEnd:   gc.colEnd,
			BBox:     box,
			Header:   gc.header || gc.sectionHeader,
			Empty:    gc.empty,
			Text:     cell.Text(cells),
		})
	}

	return Structure{Rows: rows, Cols: cols, Cells: out}, nil
}

// Decode runs the full three-step pipeline — token decode, grid
// resolution, bbox attachment — over a table structure model's raw
// output tensors.
func Decode(tokenLogits preprocess.Tensor, vocab []Token, boxTensor preprocess.Tensor, tableBBox geometry.BBox, textCells []cell.TextCell) (Structure, error) {
	tokens := DecodeTokens(tokenLogits, vocab)
	resolved, rows, cols := BuildGrid(tokens)

	boxes := decodeBoxes(boxTensor, tableBBox)
	return AttachBBoxes(resolved, rows, cols, boxes, textCells)
}

// decodeBoxes rescales the bbox head's normalized [N,4] cx,cy,w,h
// output into the table's pixel-space bounding box.
func decodeBoxes(boxTensor preprocess.Tensor, tableBBox geometry.BBox) []geometry.BBox {
	n := len(boxTensor.Data) / 4
	boxes := make([]geometry.BBox, 0, n)
	w, h := tableBBox.Width(), tableBBox.Height()
	for i := 0; i < n; i++ {
		base := i * 4
		cx := float64(boxTensor.Data[base]) * w
		cy := float64(boxTensor.Data[base+1]) * h
		bw := float64(boxTensor.Data[base+2]) * w
		bh := float64(boxTensor.Data[base+3]) * h
		boxes = append(boxes, geometry.NewBBox(
			tableBBox.Left+cx-bw/2, tableBBox.Top+cy-bh/2,
			tableBBox.Left+cx+bw/2, tableBBox.Top+cy+bh/2,
			tableBBox.Origin,
		))
	}
	return boxes
}
