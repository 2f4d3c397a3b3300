package cluster

import (
	"sort"

	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/layoutdetect"
)

// priorityOrder ranks labels into the tiers stage 8 resolves overlap and
// containment by: table/picture outrank code/formula, which outrank
// section headers/titles, which outrank running text/list items, which
// outrank the page furniture and captions, which outrank orphans.
// Labels within the same tier are equal priority; ties are then broken
// by confidence, then by area (see sortByPriority).
var priorityOrder = map[layoutdetect.Label]int{
	layoutdetect.LabelTable:         0,
	layoutdetect.LabelPicture:       0,
	layoutdetect.LabelCode:          1,
	layoutdetect.LabelFormula:       1,
	layoutdetect.LabelSectionHeader: 2,
	layoutdetect.LabelTitle:         2,
	layoutdetect.LabelText:          3,
	layoutdetect.LabelListItem:      3,
	layoutdetect.LabelPageHeader:    4,
	layoutdetect.LabelPageFooter:    4,
	layoutdetect.LabelFootnote:      4,
	layoutdetect.LabelCaption:       4,
}

// orphanPriority is the lowest rank of all: a synthetic cluster never
// outranks a real detection of any label.
const orphanPriority = 1000

func priority(l layoutdetect.Label) int {
	if p, ok := priorityOrder[l]; ok {
		return p
	}
	return len(priorityOrder) // unrecognized label: below every named tier, above orphans
}

// clusterPriority is the rank a cluster competes with in stage 8,
// overriding a cluster's label-derived priority when it's an orphan.
func clusterPriority(c Cluster) int {
	if c.Orphan {
		return orphanPriority
	}
	return priority(c.Label)
}

// sortByPriority orders clusters descending priority (lowest rank number
// first), then descending confidence, then descending bbox area — the
// processing order stage 8 walks clusters in.
func sortByPriority(clusters []Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		pi, pj := clusterPriority(clusters[i]), clusterPriority(clusters[j])
		if pi != pj {
			return pi < pj
		}
		if clusters[i].Confidence != clusters[j].Confidence {
			return clusters[i].Confidence > clusters[j].Confidence
		}
		return clusters[i].BBox.Area() > clusters[j].BBox.Area()
	})
}

func isTableOrPicture(l layoutdetect.Label) bool {
	return l == layoutdetect.LabelTable || l == layoutdetect.LabelPicture
}

// containsWithSlack reports whether outer fully contains inner, allowing
// inner to extend up to slack pixels past outer's edge on each side.
func containsWithSlack(outer, inner geometry.BBox, slack float64) bool {
	iTop, iBottom := normalizedV(inner)
	oTop, oBottom := normalizedV(outer)
	return inner.Left >= outer.Left-slack &&
		inner.Right <= outer.Right+slack &&
		iTop >= oTop-slack &&
		iBottom <= oBottom+slack
}

// normalizedV returns (top, bottom) such that top<=bottom, regardless of
// coordinate origin.
func normalizedV(b geometry.BBox) (top, bottom float64) {
	if b.Top <= b.Bottom {
		return b.Top, b.Bottom
	}
	return b.Bottom, b.Top
}
