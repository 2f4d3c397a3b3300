package cluster

import (
	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/geometry"
)

// stage8Resolve is the pipeline's final stage: containment absorption,
// IoU-bucketed overlap resolution (same-label merge, different-label
// shrink-or-drop), a from-scratch final cell assignment over the full
// cell pool, and per-cluster reading order. Clusters are processed in
// descending priority throughout (see sortByPriority).
func stage8Resolve(clusters []Cluster, cfg Config) []Cluster {
	pool := collectCells(clusters)

	work := append([]Cluster(nil), clusters...)
	sortByPriority(work)

	work = resolveContainment(work, cfg.ContainmentSlackPx)
	work = resolveOverlap(work, cfg.OverlapIoULow, cfg.OverlapIoUHigh, cfg.ContainmentSlackPx, cfg.MinSurvivingAreaPx2)
	work = reassignCells(work, pool, cfg.FinalCellContainmentThreshold)

	out := work[:0]
	for _, c := range work {
		if len(c.Cells) > 0 || cfg.EmptyAllowedLabels[c.Label] {
			out = append(out, c)
		}
	}
	for i := range out {
		out[i].Cells = cell.Order(out[i].Cells)
	}
	return out
}

// collectCells gathers the distinct cells held across every cluster
// (including orphans) before stage 8 mutates anything, giving the final
// reassignment pass its pool to redistribute from scratch.
func collectCells(clusters []Cluster) []cell.TextCell {
	seen := make(map[string]bool)
	var pool []cell.TextCell
	for _, c := range clusters {
		for _, cl := range c.Cells {
			key := cellKey(cl)
			if !seen[key] {
				seen[key] = true
				pool = append(pool, cl)
			}
		}
	}
	return pool
}

// resolveContainment implements stage 8 step 1: if A fully contains B
// (within slack) and A is table or picture and B's priority is no
// better than A's, B is absorbed (removed outright). Any other
// containment relation is left as it is: it is not recorded anywhere
// and does not mutate a bbox here.
func resolveContainment(clusters []Cluster, slack float64) []Cluster {
	removed := make([]bool, len(clusters))
	for i := range clusters {
		if !isTableOrPicture(clusters[i].Label) {
			continue
		}
		for j := range clusters {
			if i == j || removed[j] {
				continue
			}
			if !containsWithSlack(clusters[i].BBox, clusters[j].BBox, slack) {
				continue
			}
			if clusterPriority(clusters[j]) < clusterPriority(clusters[i]) {
				continue // B outranks A: don't absorb
			}
			removed[j] = true
		}
	}

	out := clusters[:0]
	for i, c := range clusters {
		if !removed[i] {
			out = append(out, c)
		}
	}
	return out
}

// resolveOverlap implements stage 8 step 2: pairs with IoU in
// [iouLow, iouHigh) that don't fully contain one another either merge
// (same label: union bbox, area-weighted confidence) or shrink the
// lower-priority cluster to its bbox difference against the
// higher-priority one, dropping it if the remainder falls below
// minArea. Pairs outside the bucket (IoU at or above iouHigh, or below
// iouLow) are untouched.
func resolveOverlap(clusters []Cluster, iouLow, iouHigh, slack, minArea float64) []Cluster {
	dropped := make([]bool, len(clusters))
	merged := make([]bool, len(clusters))

	for i := 0; i < len(clusters); i++ {
		if dropped[i] || merged[i] {
			continue
		}
		for j := i + 1; j < len(clusters); j++ {
			if dropped[j] || merged[j] {
				continue
			}
			iou := geometry.IoU(clusters[i].BBox, clusters[j].BBox)
			if iou < iouLow || iou >= iouHigh {
				continue
			}
			if containsWithSlack(clusters[i].BBox, clusters[j].BBox, slack) ||
				containsWithSlack(clusters[j].BBox, clusters[i].BBox, slack) {
				continue
			}

			if clusters[i].Label == clusters[j].Label {
				clusters[i] = mergeOverlapping(clusters[i], clusters[j])
				merged[j] = true
				continue
			}

			hi, lo := i, j
			if clusterPriority(clusters[j]) < clusterPriority(clusters[i]) {
				hi, lo = j, i
			}
			shrunk := rectangleDifference(clusters[lo].BBox, clusters[hi].BBox)
			if shrunk.Area() < minArea {
				dropped[lo] = true
				if lo == i {
					break
				}
				continue
			}
			clusters[lo].BBox = shrunk
		}
	}

	out := clusters[:0]
	for i, c := range clusters {
		if !dropped[i] && !merged[i] {
			out = append(out, c)
		}
	}
	return out
}

// mergeOverlapping folds b into a: the union of their bboxes, a
// confidence weighted by each cluster's bbox area, and the union of
// their claimed cells.
func mergeOverlapping(a, b Cluster) Cluster {
	total := a.BBox.Area() + b.BBox.Area()
	conf := a.Confidence
	if total > 0 {
		conf = (a.Confidence*a.BBox.Area() + b.Confidence*b.BBox.Area()) / total
	}
	a.BBox = geometry.Union(a.BBox, b.BBox)
	a.Confidence = conf
	a.Cells = mergeCells(a.Cells, b.Cells)
	return a
}

// reassignCells implements stage 8 step 3: every cell in pool is handed
// to the highest-priority surviving cluster whose bbox contains at
// least `threshold` fraction of the cell's area, ties broken by the
// smallest containing cluster (most specific). A cell contained by no
// cluster is dropped from the cluster set entirely (unclaimed cells are
// the responsibility of stage 6's orphan creation, run before this).
func reassignCells(clusters []Cluster, pool []cell.TextCell, threshold float64) []Cluster {
	for i := range clusters {
		clusters[i].Cells = nil
	}

	for _, cl := range pool {
		best := -1
		var bestPriority int
		var bestArea float64
		for i := range clusters {
			if !geometry.Contains(clusters[i].BBox, cl.BBox, threshold) {
				continue
			}
			p, area := clusterPriority(clusters[i]), clusters[i].BBox.Area()
			if best == -1 || p < bestPriority || (p == bestPriority && area < bestArea) {
				best, bestPriority, bestArea = i, p, area
			}
		}
		if best >= 0 {
			clusters[best].Cells = append(clusters[best].Cells, cl)
		}
	}
	return clusters
}

// rectangleDifference trims inner's bbox to the largest axis-aligned
// rectangle not covered by outer, picking whichever of the four
// possible trims (left/right/top/bottom strip) keeps the most area.
// Non-rectangular differences (an L-shaped remainder) can't be
// expressed as a single bbox, so this is an approximation: it never
// returns a box larger than the input, only a smaller or equal one.
func rectangleDifference(inner, outer geometry.BBox) geometry.BBox {
	overlap, ok := geometry.Intersection(inner, outer)
	if !ok {
		return inner
	}

	var candidates []geometry.BBox

	if overlap.Left > inner.Left {
		candidates = append(candidates, geometry.NewBBox(inner.Left, inner.Top, overlap.Left, inner.Bottom, inner.Origin))
	}
	if overlap.Right < inner.Right {
		candidates = append(candidates, geometry.NewBBox(overlap.Right, inner.Top, inner.Right, inner.Bottom, inner.Origin))
	}
	if overlap.Top > inner.Top {
		candidates = append(candidates, geometry.NewBBox(inner.Left, inner.Top, inner.Right, overlap.Top, inner.Origin))
	}
	if overlap.Bottom < inner.Bottom {
		candidates = append(candidates, geometry.NewBBox(inner.Left, overlap.Bottom, inner.Right, inner.Bottom, inner.Origin))
	}

	if len(candidates) == 0 {
		// fully contained: no rectangular remainder survives.
		return geometry.NewBBox(inner.Left, inner.Top, inner.Left, inner.Top, inner.Origin)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Area() > best.Area() {
			best = c
		}
	}
	return best
}
