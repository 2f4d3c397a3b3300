// Package cell defines the text-cell type shared by native PDF
// extraction (C1) and OCR (C8), plus pool helpers for partitioning
// cells by containing region.
package cell

import (
	"sort"
	"strings"

	"github.com/docpipeline/core/internal/geometry"
)

// Source identifies how a TextCell was produced.
type Source string

const (
	SourceNative Source = "native" // extracted from the PDF's text layer
	SourceOCR    Source = "ocr"    // produced by the OCR wrapper (C8)
)

// TextCell is one run of text with its bounding box and provenance.
// Native cells additionally carry font metadata; OCR cells carry a
// recognition confidence instead.
type TextCell struct {
	Text       string         `json:"text"`
	BBox       geometry.BBox  `json:"bbox"`
	Source     Source         `json:"source"`
	FontName   string         `json:"font_name,omitempty"`
	FontSize   float64        `json:"font_size,omitempty"`
	Bold       bool           `json:"bold,omitempty"`
	Italic     bool           `json:"italic,omitempty"`
	Confidence float64        `json:"confidence,omitempty"` // OCR only, [0,1]
}

// Pool is an ordered collection of TextCells for one page, kept in
// extraction order (native: reading order from the text layer; OCR:
// detector output order).
type Pool struct {
	Cells []TextCell
}

// NewPool wraps a cell slice into a Pool.
func NewPool(cells []TextCell) *Pool {
	return &Pool{Cells: cells}
}

// Within returns the cells whose bounding box is covered by region at
// least `threshold` fraction, preserving relative order.
func (p *Pool) Within(region geometry.BBox, threshold float64) []TextCell {
	var out []TextCell
	for _, c := range p.Cells {
		if geometry.Contains(region, c.BBox, threshold) {
			out = append(out, c)
		}
	}
	return out
}

// Remaining returns the cells not covered by any of the given regions
// at the given containment threshold — the pool of "orphan" candidates
// consumed by cluster resolution's orphan-creation stage.
func (p *Pool) Remaining(regions []geometry.BBox, threshold float64) []TextCell {
	var out []TextCell
	for _, c := range p.Cells {
		claimed := false
		for _, r := range regions {
			if geometry.Contains(r, c.BBox, threshold) {
				claimed = true
				break
			}
		}
		if !claimed {
			out = append(out, c)
		}
	}
	return out
}

// Order sorts cells into reading order: rows grouped by y-centre within
// a tolerance of half the cells' own median height, each row then
// sorted left to right by x-centre. This is the row-major order stage 8
// assigns a cluster's final cell membership in (§4.6 step 4).
func Order(cells []TextCell) []TextCell {
	out := make([]TextCell, 0, len(cells))
	for _, row := range groupRows(cells) {
		out = append(out, row...)
	}
	return out
}

// Text concatenates cell text in reading order: a single space between
// cells on the same line, a single newline between lines. Lines are
// grouped the same way Order groups rows.
func Text(cells []TextCell) string {
	if len(cells) == 0 {
		return ""
	}
	rows := groupRows(cells)
	lines := make([]string, len(rows))
	for i, row := range rows {
		parts := make([]string, len(row))
		for j, c := range row {
			parts[j] = c.Text
		}
		lines[i] = strings.Join(parts, " ")
	}
	return strings.Join(lines, "\n")
}

// groupRows buckets cells into top-to-bottom rows by y-centre (line
// height tolerance = 0.5 * the cells' own median height) and sorts each
// row left to right by x-centre.
func groupRows(cells []TextCell) [][]TextCell {
	if len(cells) == 0 {
		return nil
	}
	sorted := append([]TextCell(nil), cells...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BBox.CenterY() < sorted[j].BBox.CenterY()
	})
	tolerance := 0.5 * medianHeight(sorted)

	var rows [][]TextCell
	i := 0
	for i < len(sorted) {
		j := i + 1
		rowTop := sorted[i].BBox.CenterY()
		for j < len(sorted) && sorted[j].BBox.CenterY()-rowTop <= tolerance {
			j++
		}
		row := append([]TextCell(nil), sorted[i:j]...)
		sort.SliceStable(row, func(a, b int) bool {
			return row[a].BBox.CenterX() < row[b].BBox.CenterX()
		})
		rows = append(rows, row)
		i = j
	}
	return rows
}

// medianHeight returns the median bbox height over cells, 0 if empty.
func medianHeight(cells []TextCell) float64 {
	heights := make([]float64, 0, len(cells))
	for _, c := range cells {
		if h := c.BBox.Height(); h > 0 {
			heights = append(heights, h)
		}
	}
	if len(heights) == 0 {
		return 0
	}
	for i := 1; i < len(heights); i++ {
		for j := i; j > 0 && heights[j-1] > heights[j]; j-- {
			heights[j-1], heights[j] = heights[j], heights[j-1]
		}
	}
	return heights[len(heights)/2]
}

// BoundingBox returns the smallest box enclosing all cells, and false
// if cells is empty.
func BoundingBox(cells []TextCell) (geometry.BBox, bool) {
	if len(cells) == 0 {
		return geometry.BBox{}, false
	}
	box := cells[0].BBox
	for _, c := range cells[1:] {
		box = geometry.Union(box, c.BBox)
	}
	return box, true
}
