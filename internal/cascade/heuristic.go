package cascade

import (
	"math"
	"sort"
	"strings"

	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/layoutdetect"
)

// HeuristicConfig tunes the heuristic layout path's label assignment,
// replacing the ML detector's learned boundaries with geometric and
// typographic rules of thumb over the native cell pool.
type HeuristicConfig struct {
	// HeaderBandFraction/FooterBandFraction: top/bottom fraction of page
	// height treated as running header/footer territory.
	HeaderBandFraction float64
	FooterBandFraction float64
	// SectionHeaderFontRatio: a cell whose font size is at least this
	// many times the page's median font size is a section-header
	// candidate.
	SectionHeaderFontRatio float64
	// SectionHeaderMaxWords bounds how long a cell's text may be and
	// still qualify as a header rather than large body text.
	SectionHeaderMaxWords int
	// LineGapMultiplier: consecutive same-label cells split into
	// separate clusters once their vertical gap exceeds this many
	// median line heights.
	LineGapMultiplier float64
	// MinPictureGapFraction: an internal vertical whitespace band at
	// least this fraction of page height, bounded above and below by
	// text, is assumed to hold a picture the cell pool can't see.
	MinPictureGapFraction float64
	// GridMinColumns/GridMinRows: a region must show at least this many
	// aligned columns across at least this many consecutive rows before
	// it is confirmed as a table grid.
	GridMinColumns int
	GridMinRows    int
	// GridColumnTolerance: horizontal alignment tolerance for column
	// starts across rows, as a fraction of page width.
	GridColumnTolerance float64
}

// DefaultHeuristicConfig returns the calibrated defaults.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		HeaderBandFraction:     0.08,
		FooterBandFraction:     0.08,
		SectionHeaderFontRatio: 1.25,
		SectionHeaderMaxWords:  12,
		LineGapMultiplier:      2.5,
		MinPictureGapFraction:  0.12,
		GridMinColumns:         2,
		GridMinRows:            2,
		GridColumnTolerance:    0.02,
	}
}

// Heuristic builds a RawCluster set directly from native text cells,
// the fast path a page is routed to instead of the ML layout detector
// (§4.5). Its label set is intentionally narrower than the ML path's:
// text, section_header, page_header, page_footer, picture, and table —
// and table is only ever emitted when the cells show strong grid
// alignment on their own, never on the strength of whitespace alone,
// so a heuristic-routed page can't silently fabricate a table.
func Heuristic(cells []cell.TextCell, pageWidth, pageHeight float64, cfg HeuristicConfig) []layoutdetect.RawCluster {
	if len(cells) == 0 {
		return nil
	}

	ordered := make([]cell.TextCell, len(cells))
	copy(ordered, cells)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BBox.CenterY() < ordered[j].BBox.CenterY()
	})

	medianFont := medianFontSize(ordered)
	lineHeight := medianLineHeight(ordered)

	clusters := clusterByLabel(ordered, pageHeight, medianFont, lineHeight, cfg)
	clusters = append(clusters, detectPictureGaps(ordered, pageWidth, pageHeight, cfg)...)
	if grid, ok := detectTableGrid(ordered, pageWidth, cfg); ok {
		clusters = append(clusters, grid)
	}
	return clusters
}

// clusterByLabel walks cells in vertical order, classifying each one
// and merging runs of consecutive same-label cells (within the
// configured line-gap tolerance) into a single cluster.
func clusterByLabel(ordered []cell.TextCell, pageHeight, medianFont, lineHeight float64, cfg HeuristicConfig) []layoutdetect.RawCluster {
	var clusters []layoutdetect.RawCluster
	var current []cell.TextCell
	var currentLabel layoutdetect.Label

	flush := func() {
		if len(current) == 0 {
			return
		}
		box, ok := cell.BoundingBox(current)
		if ok {
			clusters = append(clusters, layoutdetect.RawCluster{Label: currentLabel, Confidence: 1.0, BBox: box})
		}
		current = nil
	}

	for _, c := range ordered {
		label := classifyCell(c, pageHeight, medianFont, cfg)

		if len(current) > 0 {
			gap := c.BBox.CenterY() - current[len(current)-1].BBox.CenterY()
			sameRun := label == currentLabel && gap <= cfg.LineGapMultiplier*lineHeight
			if !sameRun {
				flush()
			}
		}

		currentLabel = label
		current = append(current, c)

		// Section headers stand alone even when the next line is close,
		// since they mark a boundary rather than continuing a block.
		if label == layoutdetect.LabelSectionHeader {
			flush()
		}
	}
	flush()

	return clusters
}

// classifyCell assigns one of the heuristic path's restricted labels to
// a single cell based on its page position and font size relative to
// the page median.
func classifyCell(c cell.TextCell, pageHeight, medianFont float64, cfg HeuristicConfig) layoutdetect.Label {
	top := math.Min(c.BBox.Top, c.BBox.Bottom)
	bottom := math.Max(c.BBox.Top, c.BBox.Bottom)

	if pageHeight > 0 {
		if bottom <= pageHeight*cfg.HeaderBandFraction {
			return layoutdetect.LabelPageHeader
		}
		if top >= pageHeight*(1-cfg.FooterBandFraction) {
			return layoutdetect.LabelPageFooter
		}
	}

	if medianFont > 0 && c.FontSize >= medianFont*cfg.SectionHeaderFontRatio {
		if words := len(strings.Fields(c.Text)); words > 0 && words <= cfg.SectionHeaderMaxWords {
			return layoutdetect.LabelSectionHeader
		}
	}

	return layoutdetect.LabelText
}

// detectPictureGaps finds internal vertical whitespace bands wide
// enough, and bounded on both sides by text, to assume a picture
// occupies them — the cell pool has no way to see image content
// directly, so this is the heuristic path's only picture signal.
func detectPictureGaps(ordered []cell.TextCell, pageWidth, pageHeight float64, cfg HeuristicConfig) []layoutdetect.RawCluster {
	if pageHeight <= 0 || len(ordered) < 2 {
		return nil
	}

	cursor := math.Max(ordered[0].BBox.Top, ordered[0].BBox.Bottom)
	var out []layoutdetect.RawCluster
	for _, c := range ordered[1:] {
		top := math.Min(c.BBox.Top, c.BBox.Bottom)
		bottom := math.Max(c.BBox.Top, c.BBox.Bottom)

		if gap := top - cursor; gap >= cfg.MinPictureGapFraction*pageHeight {
			out = append(out, layoutdetect.RawCluster{
				Label:      layoutdetect.LabelPicture,
				Confidence: 0.6,
				BBox:       geometry.NewBBox(0, cursor, pageWidth, top, geometry.TopLeft),
			})
		}
		if bottom > cursor {
			cursor = bottom
		}
	}
	return out
}

// detectTableGrid looks for the longest run of consecutive text rows
// that share the same number of columns, aligned within tolerance, and
// confirms a table cluster only when that run meets the configured
// minimum grid size.
func detectTableGrid(ordered []cell.TextCell, pageWidth float64, cfg HeuristicConfig) (layoutdetect.RawCluster, bool) {
	if pageWidth <= 0 {
		return layoutdetect.RawCluster{}, false
	}

	rows := groupIntoRows(ordered)
	if len(rows) < cfg.GridMinRows {
		return layoutdetect.RawCluster{}, false
	}

	tolerance := cfg.GridColumnTolerance * pageWidth
	var bestRun, run [][]cell.TextCell
	var anchor []float64

	flushRun := func() {
		if len(run) > len(bestRun) {
			bestRun = run
		}
		run = nil
		anchor = nil
	}

	for _, row := range rows {
		cols := columnStarts(row)
		if len(cols) < cfg.GridMinColumns {
			flushRun()
			continue
		}
		if anchor != nil && alignedColumns(anchor, cols, tolerance) {
			run = append(run, row)
			continue
		}
		flushRun()
		run = [][]cell.TextCell{row}
		anchor = cols
	}
	flushRun()

	if len(bestRun) < cfg.GridMinRows {
		return layoutdetect.RawCluster{}, false
	}

	var all []cell.TextCell
	for _, row := range bestRun {
		all = append(all, row...)
	}
	box, ok := cell.BoundingBox(all)
	if !ok {
		return layoutdetect.RawCluster{}, false
	}
	return layoutdetect.RawCluster{Label: layoutdetect.LabelTable, Confidence: 0.7, BBox: box}, true
}

// groupIntoRows partitions cells into text rows by vertical proximity,
// each row sorted left to right, the shape detectTableGrid needs to
// check column alignment.
func groupIntoRows(cells []cell.TextCell) [][]cell.TextCell {
	sorted := make([]cell.TextCell, len(cells))
	copy(sorted, cells)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BBox.CenterY() < sorted[j].BBox.CenterY()
	})

	lineHeight := medianLineHeight(sorted)
	var rows [][]cell.TextCell
	var current []cell.TextCell
	for _, c := range sorted {
		if len(current) > 0 {
			gap := math.Abs(c.BBox.CenterY() - current[len(current)-1].BBox.CenterY())
			if gap > lineHeight*0.6 {
				rows = append(rows, sortByLeft(current))
				current = nil
			}
		}
		current = append(current, c)
	}
	if len(current) > 0 {
		rows = append(rows, sortByLeft(current))
	}
	return rows
}

func sortByLeft(cells []cell.TextCell) []cell.TextCell {
	out := make([]cell.TextCell, len(cells))
	copy(out, cells)
	sort.SliceStable(out, func(i, j int) bool { return out[i].BBox.Left < out[j].BBox.Left })
	return out
}

func columnStarts(row []cell.TextCell) []float64 {
	out := make([]float64, len(row))
	for i, c := range row {
		out[i] = c.BBox.Left
	}
	return out
}

func alignedColumns(a, b []float64, tolerance float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tolerance {
			return false
		}
	}
	return true
}

// medianFontSize returns the median font size among cells that carry
// one (native cells always do; OCR cells may not), falling back to a
// plausible body-text default when none do.
func medianFontSize(cells []cell.TextCell) float64 {
	var sizes []float64
	for _, c := range cells {
		if c.FontSize > 0 {
			sizes = append(sizes, c.FontSize)
		}
	}
	if len(sizes) == 0 {
		return 10
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// medianLineHeight returns the median cell height, the same fallback
// idiom used in the assembly stage's caption/footnote proximity check.
func medianLineHeight(cells []cell.TextCell) float64 {
	var heights []float64
	for _, c := range cells {
		if h := c.BBox.Height(); h > 0 {
			heights = append(heights, h)
		}
	}
	if len(heights) == 0 {
		return 12
	}
	sort.Float64s(heights)
	return heights[len(heights)/2]
}
