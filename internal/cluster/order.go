package cluster

import "sort"

// ReadingOrder returns clusters sorted into a top-to-bottom,
// left-to-right reading order: clusters are grouped into rows whose
// vertical centers fall within rowBandHeight of each other, and within
// a row sorted left to right. This is the heuristic fallback order
// page assembly (C11) uses before any column-aware reflow.
func ReadingOrder(clusters []Cluster, rowBandHeight float64) []Cluster {
	sorted := make([]Cluster, len(clusters))
	copy(sorted, clusters)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BBox.CenterY() < sorted[j].BBox.CenterY()
	})

	var out []Cluster
	i := 0
	for i < len(sorted) {
		j := i + 1
		rowTop := sorted[i].BBox.CenterY()
		for j < len(sorted) && sorted[j].BBox.CenterY()-rowTop <= rowBandHeight {
			j++
		}
		row := sorted[i:j]
		sort.SliceStable(row, func(a, b int) bool {
			return row[a].BBox.CenterX() < row[b].BBox.CenterX()
		})
		out = append(out, row...)
		i = j
	}
	return out
}
