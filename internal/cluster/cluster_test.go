package cluster

import (
	"testing"

	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/layoutdetect"
)

func box(l, t, r, b float64) geometry.BBox {
	return geometry.NewBBox(l, t, r, b, geometry.TopLeft)
}

func textCell(text string, l, t, r, b float64) cell.TextCell {
	return cell.TextCell{Text: text, BBox: box(l, t, r, b), Source: cell.SourceNative}
}

func raw(label layoutdetect.Label, conf float64, l, t, r, b float64) layoutdetect.RawCluster {
	return layoutdetect.RawCluster{Label: label, Confidence: conf, BBox: box(l, t, r, b)}
}

func TestResolveClaimsCellsWithinCluster(t *testing.T) {
	rawClusters := []layoutdetect.RawCluster{
		raw(layoutdetect.LabelText, 0.9, 0, 0, 100, 100),
	}
	cells := []cell.TextCell{textCell("hello", 10, 10, 50, 20)}

	out := Resolve(rawClusters, cells, DefaultConfig())
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Text() != "hello" {
		t.Errorf("Text() = %q, want hello", out[0].Text())
	}
}

func TestResolveDropsLowConfidenceEmptyCluster(t *testing.T) {
	rawClusters := []layoutdetect.RawCluster{
		raw(layoutdetect.LabelText, 0.1, 0, 0, 100, 100), // below floor, no cells
	}
	out := Resolve(rawClusters, nil, DefaultConfig())
	if len(out) != 0 {
		t.Fatalf("len(out) = %d, want 0", len(out))
	}
}

func TestResolveKeepsEmptyPicture(t *testing.T) {
	rawClusters := []layoutdetect.RawCluster{
		raw(layoutdetect.LabelPicture, 0.9, 0, 0, 100, 100),
	}
	out := Resolve(rawClusters, nil, DefaultConfig())
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (pictures may be empty)", len(out))
	}
}

func TestResolveCreatesOrphanForUnclaimedCell(t *testing.T) {
	rawClusters := []layoutdetect.RawCluster{
		raw(layoutdetect.LabelText, 0.9, 0, 0, 50, 50),
	}
	cells := []cell.TextCell{
		textCell("inside", 5, 5, 40, 20),
		textCell("outside", 200, 200, 250, 220),
	}
	out := Resolve(rawClusters, cells, DefaultConfig())
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (one detected + one orphan)", len(out))
	}

	var foundOrphan bool
	for _, c := range out {
		if c.Orphan && c.Text() == "outside" {
			foundOrphan = true
		}
	}
	if !foundOrphan {
		t.Error("expected an orphan cluster wrapping the unclaimed cell")
	}
}

func TestResolveDeduplicatesOverlappingSameLabel(t *testing.T) {
	rawClusters := []layoutdetect.RawCluster{
		raw(layoutdetect.LabelText, 0.95, 0, 0, 100, 100),
		raw(layoutdetect.LabelText, 0.80, 2, 2, 98, 98), // near-identical, same label
	}
	cells := []cell.TextCell{textCell("x", 10, 10, 20, 20)}
	out := Resolve(rawClusters, cells, DefaultConfig())
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 after dedup", len(out))
	}
}

func TestStage8ResolvesOverlapByPriority(t *testing.T) {
	clusters := []Cluster{
		{ID: "c1", Label: layoutdetect.LabelTable, Confidence: 0.9, BBox: box(0, 0, 100, 100),
			Cells: []cell.TextCell{textCell("a", 10, 10, 20, 20)}},
		{ID: "c2", Label: layoutdetect.LabelText, Confidence: 0.9, BBox: box(0, 0, 100, 100),
			Cells: []cell.TextCell{textCell("a", 10, 10, 20, 20)}},
	}
	out := stage8Resolve(clusters, DefaultConfig())

	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (identical-bbox text cluster absorbed by the table)", len(out))
	}
	if out[0].Label != layoutdetect.LabelTable || len(out[0].Cells) != 1 {
		t.Errorf("got %+v, want the table cluster keeping its cell", out[0])
	}
}

func TestStage8MergesOverlappingSameLabel(t *testing.T) {
	// Same-width, same-height boxes offset so IoU lands at ~0.43, inside
	// the [0.3, 0.85) overlap-resolution bucket.
	clusters := []Cluster{
		{ID: "c1", Label: layoutdetect.LabelText, Confidence: 0.6, BBox: box(0, 0, 100, 60),
			Cells: []cell.TextCell{textCell("a", 10, 10, 20, 20)}},
		{ID: "c2", Label: layoutdetect.LabelText, Confidence: 0.8, BBox: box(40, 0, 140, 60),
			Cells: []cell.TextCell{textCell("b", 110, 10, 120, 20)}},
	}
	out := stage8Resolve(clusters, DefaultConfig())
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 merged cluster", len(out))
	}
	if out[0].BBox.Left != 0 || out[0].BBox.Right != 140 {
		t.Errorf("merged bbox = %+v, want union spanning 0..140", out[0].BBox)
	}
	if len(out[0].Cells) != 2 {
		t.Errorf("merged cluster has %d cells, want 2", len(out[0].Cells))
	}
}

func TestStage8ShrinksLowerPriorityOnPartialOverlap(t *testing.T) {
	// IoU(table, text) = 0.33, inside the overlap bucket; neither
	// contains the other, so the lower-priority text cluster is shrunk
	// to the remainder outside the table instead of merged or dropped.
	clusters := []Cluster{
		{ID: "c1", Label: layoutdetect.LabelTable, Confidence: 0.9, BBox: box(0, 0, 100, 100),
			Cells: []cell.TextCell{textCell("t", 10, 10, 20, 20)}},
		{ID: "c2", Label: layoutdetect.LabelText, Confidence: 0.9, BBox: box(50, 0, 150, 100),
			Cells: []cell.TextCell{textCell("x", 130, 10, 140, 20)}},
	}
	out := stage8Resolve(clusters, DefaultConfig())

	var text *Cluster
	for i := range out {
		if out[i].Label == layoutdetect.LabelText {
			text = &out[i]
		}
	}
	if text == nil {
		t.Fatalf("text cluster was dropped entirely, want it shrunk and kept")
	}
	if text.BBox.Left < 100 {
		t.Errorf("text bbox = %+v, want shrunk to the right of the table (left >= 100)", text.BBox)
	}
}

func TestRectangleDifferenceTrimsOverlap(t *testing.T) {
	inner := box(0, 0, 100, 50)
	outer := box(50, 0, 150, 50)

	got := rectangleDifference(inner, outer)
	if got.Right > 50.01 {
		t.Errorf("expected remainder trimmed to left of overlap, got %+v", got)
	}
}

func TestRectangleDifferenceFullyContained(t *testing.T) {
	inner := box(10, 10, 20, 20)
	outer := box(0, 0, 100, 100)

	got := rectangleDifference(inner, outer)
	if got.Area() != 0 {
		t.Errorf("expected degenerate box for full containment, got area %v", got.Area())
	}
}

func TestReadingOrderGroupsRows(t *testing.T) {
	clusters := []Cluster{
		{ID: "right", BBox: box(100, 0, 200, 20)},
		{ID: "left", BBox: box(0, 0, 50, 20)},
		{ID: "below", BBox: box(0, 200, 50, 220)},
	}
	ordered := ReadingOrder(clusters, 10)
	if len(ordered) != 3 {
		t.Fatalf("len(ordered) = %d, want 3", len(ordered))
	}
	if ordered[0].ID != "left" || ordered[1].ID != "right" || ordered[2].ID != "below" {
		t.Errorf("unexpected order: %v, %v, %v", ordered[0].ID, ordered[1].ID, ordered[2].ID)
	}
}

func TestClusterIDsAreStableAndUnique(t *testing.T) {
	rawClusters := []layoutdetect.RawCluster{
		raw(layoutdetect.LabelText, 0.9, 0, 0, 50, 50),
		raw(layoutdetect.LabelTitle, 0.9, 60, 0, 100, 20),
	}
	cells := []cell.TextCell{
		textCell("a", 5, 5, 10, 10),
		textCell("b", 65, 5, 70, 10),
	}
	out := Resolve(rawClusters, cells, DefaultConfig())
	seen := map[string]bool{}
	for _, c := range out {
		if seen[c.ID] {
			t.Errorf("duplicate cluster ID %q", c.ID)
		}
		seen[c.ID] = true
	}
}
