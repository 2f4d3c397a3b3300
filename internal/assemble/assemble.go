// Package assemble walks a page's final, resolved clusters in reading
// order and emits the typed PageElement stream a serializer collaborator
// turns into Markdown or JSON (C11). It also attaches captions and
// footnotes to the parent element they describe, generalizing the
// reference layout detector's label-priority/translatability
// conventions (ElementType.Priority, IsTranslatable,
// ConvertToTextBlock) onto a richer, typed element set.
package assemble

import (
	"strings"

	"github.com/docpipeline/core/internal/cluster"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/layoutdetect"
	"github.com/docpipeline/core/internal/table"
)

// ElementKind is the closed set of PageElement variants.
type ElementKind string

const (
	KindText    ElementKind = "text"
	KindTable   ElementKind = "table"
	KindPicture ElementKind = "picture"
	KindGroup   ElementKind = "group"
)

// PageElement is one assembled content item on a page. Table holds the
// decoded structure when Kind is KindTable and one was supplied (nil
// otherwise); Text carries the concatenated (or enriched) cell text,
// and is empty for pictures.
type PageElement struct {
	ID               string           `json:"id"`
	Kind             ElementKind      `json:"kind"`
	Label            layoutdetect.Label `json:"label"`
	BBox             geometry.BBox    `json:"bbox"`
	Text             string           `json:"text,omitempty"`
	EnrichedLanguage string           `json:"enriched_language,omitempty"`
	Table            *table.Structure `json:"table,omitempty"`
	Captions         []string         `json:"captions,omitempty"`
	Footnotes        []string         `json:"footnotes,omitempty"`
}

// IsTranslatable reports whether an element's text should be sent to a
// downstream translation/enrichment collaborator, generalizing the
// reference per-label translatability rule onto PageElement kinds.
func (e PageElement) IsTranslatable() bool {
	switch e.Label {
	case layoutdetect.LabelText, layoutdetect.LabelTitle, layoutdetect.LabelCaption,
		layoutdetect.LabelSectionHeader, layoutdetect.LabelFootnote, layoutdetect.LabelListItem:
		return true
	case layoutdetect.LabelFormula, layoutdetect.LabelPicture, layoutdetect.LabelTable,
		layoutdetect.LabelPageHeader, layoutdetect.LabelPageFooter:
		return false
	default:
		return true
	}
}

// Enrichment supplies the code/formula decoder's cleaned text for a
// cluster, keyed by cluster ID, when available. A cluster with no entry
// (or an empty Text) falls back to its raw cell concatenation.
type Enrichment struct {
	Text     string
	Language string
}

// Config tunes caption/footnote attachment.
type Config struct {
	// CaptionLineHeightMultiplier: a caption/footnote cluster attaches to
	// a parent when it lies within this many line-heights of it
	// vertically (Open Question default: 1.5).
	CaptionLineHeightMultiplier float64
	// CaptionMinHorizontalOverlap: fraction of the narrower cluster's
	// width that must overlap horizontally for attachment to apply.
	CaptionMinHorizontalOverlap float64
	// DefaultLineHeight is used when a page has no cells to measure a
	// median line height from.
	DefaultLineHeight float64
}

func DefaultConfig() Config {
	return Config{
		CaptionLineHeightMultiplier: 1.5,
		CaptionMinHorizontalOverlap: 0.5,
		DefaultLineHeight:           12,
	}
}

// Page assembles the final PageElement stream for one page's resolved
// clusters, attaching code/formula enrichment text, decoded table
// structures, and caption/footnote relations along the way. tables and
// enrichments are both keyed by cluster ID; either may be nil when the
// corresponding stage (C9/C10) was disabled for this run.
func Page(clusters []cluster.Cluster, enrichments map[string]Enrichment, tables map[string]table.Structure, cfg Config) []PageElement {
	ordered := cluster.ReadingOrder(clusters, medianLineHeight(clusters, cfg.DefaultLineHeight))

	elements := make([]PageElement, 0, len(ordered))
	captionIdx := map[string][]int{} // parent cluster ID -> indices into `ordered` of attachable captions/footnotes

	for i, c := range ordered {
		if isAttachable(c.Label) {
			if parent := findParent(c, ordered, cfg); parent != "" {
				captionIdx[parent] = append(captionIdx[parent], i)
				continue
			}
		}
		elements = append(elements, convert(c, enrichments, tables))
	}

	attachStandalone(elements, ordered, captionIdx)
	return elements
}

// isAttachable reports whether a cluster's label is a caption/footnote
// candidate for attachment to a parent, rather than always standing on
// its own.
func isAttachable(label layoutdetect.Label) bool {
	return label == layoutdetect.LabelCaption || label == layoutdetect.LabelFootnote
}

// findParent returns the cluster ID of the best parent for a
// caption/footnote cluster c: the nearest non-attachable cluster within
// the configured vertical line-height band with sufficient horizontal
// overlap. Returns "" if no parent qualifies.
func findParent(c cluster.Cluster, all []cluster.Cluster, cfg Config) string {
	lineHeight := medianLineHeight(all, cfg.DefaultLineHeight)
	band := cfg.CaptionLineHeightMultiplier * lineHeight

	best := ""
	bestDist := band + 1
	for _, candidate := range all {
		if candidate.ID == c.ID || isAttachable(candidate.Label) {
			continue
		}
		if !horizontalOverlaps(c.BBox, candidate.BBox, cfg.CaptionMinHorizontalOverlap) {
			continue
		}
		dist := verticalGap(c.BBox, candidate.BBox)
		if dist <= band && dist < bestDist {
			best, bestDist = candidate.ID, dist
		}
	}
	return best
}

// verticalGap returns the vertical distance between two boxes: 0 if
// they vertically overlap, otherwise the gap between the nearer edges.
func verticalGap(a, b geometry.BBox) float64 {
	aTop, aBottom := normalizedVertical(a)
	bTop, bBottom := normalizedVertical(b)
	if aBottom < bTop {
		return bTop - aBottom
	}
	if bBottom < aTop {
		return aTop - bBottom
	}
	return 0
}

func normalizedVertical(b geometry.BBox) (top, bottom float64) {
	if b.Top <= b.Bottom {
		return b.Top, b.Bottom
	}
	return b.Bottom, b.Top
}

// horizontalOverlaps reports whether a and b's horizontal extents
// overlap by at least `threshold` fraction of the narrower box's width.
func horizontalOverlaps(a, b geometry.BBox, threshold float64) bool {
	left := max(a.Left, b.Left)
	right := min(a.Right, b.Right)
	if left >= right {
		return false
	}
	narrower := min(a.Width(), b.Width())
	if narrower <= 0 {
		return false
	}
	return (right-left)/narrower >= threshold
}

// medianLineHeight estimates the page's typical text line height from
// cluster cell bboxes, falling back to fallback when no cells exist.
func medianLineHeight(clusters []cluster.Cluster, fallback float64) float64 {
	var heights []float64
	for _, c := range clusters {
		for _, cell := range c.Cells {
			if h := cell.BBox.Height(); h > 0 {
				heights = append(heights, h)
			}
		}
	}
	if len(heights) == 0 {
		return fallback
	}
	// simple insertion sort; page cell counts are small enough that
	// pulling in sort.Float64s for one median isn't worth the import.
	for i := 1; i < len(heights); i++ {
		for j := i; j > 0 && heights[j-1] > heights[j]; j-- {
			heights[j-1], heights[j] = heights[j], heights[j-1]
		}
	}
	return heights[len(heights)/2]
}

// convert turns one resolved cluster into its PageElement, preferring
// enrichment text for code/formula clusters when available and
// attaching a decoded table structure for table clusters when one was
// supplied.
func convert(c cluster.Cluster, enrichments map[string]Enrichment, tables map[string]table.Structure) PageElement {
	el := PageElement{
		ID:    c.ID,
		Label: c.Label,
		BBox:  c.BBox,
		Text:  c.Text(),
	}

	switch c.Label {
	case layoutdetect.LabelTable:
		el.Kind = KindTable
		if tables != nil {
			if s, ok := tables[c.ID]; ok {
				el.Table = &s
			}
		}
	case layoutdetect.LabelPicture:
		el.Kind = KindPicture
		el.Text = ""
	case layoutdetect.LabelFormula, layoutdetect.LabelCode:
		el.Kind = KindText
		applyEnrichment(&el, c.ID, enrichments)
	default:
		el.Kind = KindText
	}
	return el
}

// applyEnrichment overwrites an element's text with the code/formula
// decoder's cleaned output when one is present and non-empty, per the
// component contract's "prefer enrichment over raw cell text" rule.
func applyEnrichment(el *PageElement, clusterID string, enrichments map[string]Enrichment) {
	if enrichments == nil {
		return
	}
	if e, ok := enrichments[clusterID]; ok && strings.TrimSpace(e.Text) != "" {
		el.Text = e.Text
		el.EnrichedLanguage = e.Language
	}
}

// attachStandalone folds every caption/footnote cluster attached to a
// parent (by cluster ID, recorded in captionIdx) into that parent's
// Captions/Footnotes field, looking the parent up by ID among the
// already-converted elements.
func attachStandalone(elements []PageElement, ordered []cluster.Cluster, captionIdx map[string][]int) {
	byID := make(map[string]int, len(elements))
	for i, el := range elements {
		byID[el.ID] = i
	}
	for parentID, childPositions := range captionIdx {
		parentPos, ok := byID[parentID]
		if !ok {
			continue
		}
		for _, pos := range childPositions {
			child := ordered[pos]
			text := child.Text()
			if child.Label == layoutdetect.LabelFootnote {
				elements[parentPos].Footnotes = append(elements[parentPos].Footnotes, text)
			} else {
				elements[parentPos].Captions = append(elements[parentPos].Captions, text)
			}
		}
	}
}
