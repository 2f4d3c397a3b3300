// Package cluster implements the eight-stage deterministic resolution
// pipeline (C7) that turns raw layout detections and a pool of text
// cells into a final, non-overlapping set of labeled clusters ready for
// page assembly (C11). Every stage is a pure function over slices —
// no I/O, no randomness — so the pipeline's output is reproducible
// regardless of how many worker goroutines ran concurrently (§5).
package cluster

import (
	"fmt"
	"sort"

	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/layoutdetect"
)

// Cluster is a RawCluster enriched with its claimed text cells and a
// stable ID, the unit every later stage operates on.
type Cluster struct {
	ID         string
	Label      layoutdetect.Label
	Confidence float64
	BBox       geometry.BBox
	Cells      []cell.TextCell
	Orphan     bool // created by stage 6, not backed by a model detection
}

// Text returns the cluster's merged cell text.
func (c Cluster) Text() string {
	return cell.Text(c.Cells)
}

// Config tunes the pipeline's thresholds. Each field corresponds to one
// stage's tunable, kept together so a caller can override all of them
// from a single configuration struct.
type Config struct {
	// CellContainmentThreshold: fraction of a cell's area that must fall
	// within a cluster's bbox for the cell to be claimed by it (stage 2).
	CellContainmentThreshold float64
	// DedupIoUThreshold: clusters of the same label with IoU at or above
	// this are merged (stage 3).
	DedupIoUThreshold float64
	// ConfidenceFloor: clusters below this confidence are dropped, even
	// when they already have claimed cells (stage 4). Used as the fallback
	// for any label not present in ConfidenceFloorByLabel.
	ConfidenceFloor float64
	// ConfidenceFloorByLabel overrides ConfidenceFloor per label, since
	// the pipeline's labels carry different false-positive rates
	// (pictures/tables are filtered more strictly than running text).
	ConfidenceFloorByLabel map[layoutdetect.Label]float64
	// EmptyAllowedLabels: labels allowed to survive stage 5 with zero
	// claimed cells (pictures, tables, formulas legitimately have no
	// native text).
	EmptyAllowedLabels map[layoutdetect.Label]bool
	// OrphanContainmentThreshold: threshold used when determining which
	// cells are unclaimed and thus eligible for orphan-cluster creation
	// (stage 6).
	OrphanContainmentThreshold float64
	// OrphanInflationRatio scales the page's median cell height to get
	// the bbox inflation used when greedily merging orphan seeds: two
	// seeds join iff their inflated bboxes overlap (stage 6).
	OrphanInflationRatio float64
	// ContainmentSlackPx: pixels of slack allowed on each side when
	// testing whether one cluster's bbox fully contains another's
	// (stage 8 step 1).
	ContainmentSlackPx float64
	// OverlapIoULow/OverlapIoUHigh bound the IoU range that triggers
	// overlap resolution (merge or shrink) in stage 8 step 2. Pairs at
	// or above OverlapIoUHigh are not touched by step 2; step 1 removes
	// one of them only when the other is a table or picture containing
	// it. Pairs below OverlapIoULow are left alone as non-overlapping.
	OverlapIoULow  float64
	OverlapIoUHigh float64
	// MinSurvivingAreaPx2: a cluster whose bbox would shrink below this
	// area during overlap resolution is dropped instead (stage 8 step 2).
	MinSurvivingAreaPx2 float64
	// FinalCellContainmentThreshold: fraction of a cell's area that must
	// fall within a cluster's bbox for stage 8's final reassignment pass
	// to award the cell to that cluster.
	FinalCellContainmentThreshold float64
}

// DefaultConfig returns the pipeline's calibrated defaults.
func DefaultConfig() Config {
	return Config{
		CellContainmentThreshold: 0.6,
		DedupIoUThreshold:        0.8,
		ConfidenceFloor: 0.3,
		ConfidenceFloorByLabel: map[layoutdetect.Label]float64{
			layoutdetect.LabelPicture: 0.5,
			layoutdetect.LabelTable:   0.5,
			layoutdetect.LabelFormula: 0.4,
			layoutdetect.LabelCode:    0.4,
		},
		EmptyAllowedLabels: map[layoutdetect.Label]bool{
			layoutdetect.LabelPicture: true,
			layoutdetect.LabelTable:   true,
			layoutdetect.LabelFormula: true,
			layoutdetect.LabelCode:    true,
		},
		OrphanContainmentThreshold:    0.6,
		OrphanInflationRatio:          0.5,
		ContainmentSlackPx:            2.0,
		OverlapIoULow:                 0.3,
		OverlapIoUHigh:                0.85,
		MinSurvivingAreaPx2:           4.0,
		FinalCellContainmentThreshold: 0.8,
	}
}

// idGen deterministically assigns cluster IDs in the order clusters are
// first created, so the same input always yields the same ID
// assignment regardless of goroutine scheduling.
type idGen struct{ next int }

func (g *idGen) next_() string {
	g.next++
	return clusterID(g.next)
}

func clusterID(n int) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "c0"
	}
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append(buf, digits[n%36])
		n /= 36
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return "c" + string(buf)
}

// Resolve runs all eight stages in order and returns the final cluster
// set, ready for reading-order assignment in C11.
func Resolve(raw []layoutdetect.RawCluster, cells []cell.TextCell, cfg Config) []Cluster {
	gen := &idGen{}

	clusters := stage1Instantiate(raw, gen)
	clusters = stage2AssignCells(clusters, cells, cfg.CellContainmentThreshold)
	clusters = stage3Deduplicate(clusters, cfg.DedupIoUThreshold)
	clusters = stage4ConfidenceFilter(clusters, cfg.ConfidenceFloor, cfg.ConfidenceFloorByLabel)
	clusters = stage5NonEmptyRetention(clusters, cfg.EmptyAllowedLabels)
	clusters = stage6OrphanCreation(clusters, cells, cfg.OrphanContainmentThreshold, cfg.OrphanInflationRatio, gen)
	clusters = stage8Resolve(clusters, cfg)

	return clusters
}

// stage1Instantiate converts raw detections into Clusters with stable
// IDs and no cells yet claimed.
func stage1Instantiate(raw []layoutdetect.RawCluster, gen *idGen) []Cluster {
	out := make([]Cluster, 0, len(raw))
	for _, r := range raw {
		out = append(out, Cluster{
			ID:         gen.next_(),
			Label:      r.Label,
			Confidence: r.Confidence,
			BBox:       r.BBox,
		})
	}
	return out
}

// stage2AssignCells claims every text cell sufficiently contained by a
// cluster's bbox. A cell may be claimed by more than one cluster at
// this stage; stages 3 and 8 resolve overlap afterward.
func stage2AssignCells(clusters []Cluster, cells []cell.TextCell, threshold float64) []Cluster {
	for i := range clusters {
		clusters[i].Cells = cell.NewPool(cells).Within(clusters[i].BBox, threshold)
	}
	return clusters
}

// stage3Deduplicate merges clusters of the same label whose IoU meets
// the threshold, keeping the higher-confidence one and the union of
// their claimed cells.
func stage3Deduplicate(clusters []Cluster, iouThreshold float64) []Cluster {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Confidence > clusters[j].Confidence
	})

	kept := make([]Cluster, 0, len(clusters))
	absorbed := make([]bool, len(clusters))

	for i := range clusters {
		if absorbed[i] {
			continue
		}
		merged := clusters[i]
		for j := i + 1; j < len(clusters); j++ {
			if absorbed[j] || clusters[j].Label != merged.Label {
				continue
			}
			if geometry.IoU(merged.BBox, clusters[j].BBox) >= iouThreshold {
				merged.BBox = geometry.Union(merged.BBox, clusters[j].BBox)
				merged.Cells = mergeCells(merged.Cells, clusters[j].Cells)
				absorbed[j] = true
			}
		}
		kept = append(kept, merged)
	}

	return kept
}

func mergeCells(a, b []cell.TextCell) []cell.TextCell {
	seen := make(map[string]bool, len(a))
	out := make([]cell.TextCell, 0, len(a)+len(b))
	for _, c := range a {
		key := cellKey(c)
		if !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
	}
	for _, c := range b {
		key := cellKey(c)
		if !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}

// cellKey identifies a cell by its text and position, not text alone:
// two distinct cells with the same text (a repeated "the", a page
// number) must not collide when deduplicating across clusters.
func cellKey(c cell.TextCell) string {
	return fmt.Sprintf("%s|%.2f|%.2f|%.2f|%.2f", c.Text, c.BBox.Left, c.BBox.Top, c.BBox.Right, c.BBox.Bottom)
}

// stage4ConfidenceFilter drops every cluster below its label's
// confidence floor. Filtering is absolute: a low-confidence detection
// is dropped even if it has already claimed cells, since stage 6 will
// recreate an orphan cluster for any cell that ends up uncovered.
func stage4ConfidenceFilter(clusters []Cluster, defaultFloor float64, byLabel map[layoutdetect.Label]float64) []Cluster {
	out := clusters[:0]
	for _, c := range clusters {
		floor := defaultFloor
		if f, ok := byLabel[c.Label]; ok {
			floor = f
		}
		if c.Confidence >= floor {
			out = append(out, c)
		}
	}
	return out
}

// stage5NonEmptyRetention drops clusters with zero claimed cells unless
// their label is allowed to be legitimately empty (pictures, tables,
// formulas).
func stage5NonEmptyRetention(clusters []Cluster, emptyAllowed map[layoutdetect.Label]bool) []Cluster {
	out := clusters[:0]
	for _, c := range clusters {
		if len(c.Cells) > 0 || emptyAllowed[c.Label] {
			out = append(out, c)
		}
	}
	return out
}

// stage6OrphanCreation seeds an orphan cluster for every text cell not
// claimed by any surviving cluster, then greedily merges seeds whose
// bboxes, inflated by inflationRatio times the page's median cell
// height, overlap — so a paragraph the detector missed entirely becomes
// one orphan cluster instead of one per cell. Each resulting cluster
// gets label text, confidence 0 (it is not a model detection), and a
// fresh id above every id already assigned.
func stage6OrphanCreation(clusters []Cluster, cells []cell.TextCell, threshold, inflationRatio float64, gen *idGen) []Cluster {
	regions := make([]geometry.BBox, len(clusters))
	for i, c := range clusters {
		regions[i] = c.BBox
	}

	orphanCells := cell.NewPool(cells).Remaining(regions, threshold)
	if len(orphanCells) == 0 {
		return clusters
	}

	inflation := inflationRatio * medianCellHeight(cells)
	groups := groupOrphanSeeds(orphanCells, inflation)

	for _, members := range groups {
		box := members[0].BBox
		for _, m := range members[1:] {
			box = geometry.Union(box, m.BBox)
		}
		clusters = append(clusters, Cluster{
			ID:         gen.next_(),
			Label:      layoutdetect.LabelText,
			Confidence: 0.0,
			BBox:       box,
			Cells:      members,
			Orphan:     true,
		})
	}
	return clusters
}

// groupOrphanSeeds partitions orphanCells into connected components under
// pairwise inflated-bbox overlap, via union-find, and returns each
// component's cells in a deterministic (first-seen) group order.
func groupOrphanSeeds(orphanCells []cell.TextCell, inflation float64) [][]cell.TextCell {
	parent := make([]int, len(orphanCells))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	inflated := make([]geometry.BBox, len(orphanCells))
	for i, oc := range orphanCells {
		inflated[i] = inflateBBox(oc.BBox, inflation)
	}
	for i := 0; i < len(orphanCells); i++ {
		for j := i + 1; j < len(orphanCells); j++ {
			if _, ok := geometry.Intersection(inflated[i], inflated[j]); ok {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]cell.TextCell)
	var roots []int
	for i, oc := range orphanCells {
		root := find(i)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], oc)
	}

	groups := make([][]cell.TextCell, len(roots))
	for i, root := range roots {
		groups[i] = byRoot[root]
	}
	return groups
}

// inflateBBox expands b by amt on every side, independent of coordinate
// origin (BBox's own normalization only cares about relative order, not
// which raw field is numerically larger).
func inflateBBox(b geometry.BBox, amt float64) geometry.BBox {
	top, bottom := b.Top, b.Bottom
	if top <= bottom {
		top -= amt
		bottom += amt
	} else {
		top += amt
		bottom -= amt
	}
	return geometry.BBox{Left: b.Left - amt, Top: top, Right: b.Right + amt, Bottom: bottom, Origin: b.Origin}
}

// medianCellHeight returns the median bbox height over cells, 0 if empty.
func medianCellHeight(cells []cell.TextCell) float64 {
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
