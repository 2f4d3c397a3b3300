// Package cascade routes each page to either the ML layout path or a
// cheap heuristic fast path (C6), the way the reference layout detector
// falls back to detectLayoutRuleBased when no model is loaded — except
// here the choice is also made when a model IS loaded, based on a page
// fingerprint, because simple single-column pages gain nothing from the
// ML path.
package cascade

import (
	"github.com/docpipeline/core/internal/cell"
)

// Mode selects the routing strategy. Named to match config.CascadeMode
// 1:1 so the configuration layer and router agree on vocabulary.
type Mode string

const (
	ModeAuto            Mode = "auto"
	ModeMLAlways        Mode = "ml_always"
	ModeHeuristicAlways Mode = "heuristic_always"
	// ModeConservative routes to the heuristic path only when the page
	// fingerprint is unambiguously simple — a narrower band than Auto,
	// for deployments that would rather over-run the ML model on a
	// borderline page than under-detect a real multi-column layout.
	ModeConservative Mode = "conservative"
)

// Route is the cascade's decision for one page.
type Route string

const (
	RouteML        Route = "ml"
	RouteHeuristic Route = "heuristic"
)

// Thresholds calibrates the Auto mode's decision boundary. Exposed so a
// deployment can re-tune it against its own corpus rather than editing
// code.
type Thresholds struct {
	// CellCountFloor: below this many native text cells, a page is
	// assumed text-sparse enough that ML layout offers no benefit.
	CellCountFloor int
	// CoverageCeiling: above this fraction of the page area covered by
	// a single column of text, the page is assumed single-column and
	// routed to the heuristic path.
	CoverageCeiling float64
	// WhitespaceBandRatio: minimum ratio of page width spanned by a
	// contiguous vertical whitespace gap before the page is considered
	// multi-column. Decide does not read it: the gutter flag is computed
	// by ComputeFingerprint, which always uses autoWhitespaceBandRatio.
	WhitespaceBandRatio float64
}

// autoCellCountFloor, autoCoverageFloor, autoWhitespaceBandRatio are the
// Auto mode defaults, calibrated against the "simple single-column
// page routes to heuristic" scenario.
const (
	autoCellCountFloor      = 5
	autoCoverageFloor       = 0.85
	autoWhitespaceBandRatio = 0.08
)

// DefaultThresholds returns the calibrated Auto-mode defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CellCountFloor:      autoCellCountFloor,
		CoverageCeiling:     autoCoverageFloor,
		WhitespaceBandRatio: autoWhitespaceBandRatio,
	}
}

// Fingerprint summarizes a page's native-cell layout cheaply enough to
// compute before running any model — the signal Auto mode routes on.
type Fingerprint struct {
	CellCount        int
	SingleColumnArea float64 // fraction of page area covered by the widest single text column
	HasWideGutter    bool    // a vertical whitespace band wide enough to suggest multiple columns
}

// ComputeFingerprint computes a page's routing fingerprint from its native
// text cells and page dimensions.
func ComputeFingerprint(cells []cell.TextCell, pageWidth, pageHeight float64) Fingerprint {
	if len(cells) == 0 {
		return Fingerprint{}
	}

	box, ok := cell.BoundingBox(cells)
	if !ok {
		return Fingerprint{CellCount: len(cells)}
	}

	pageArea := pageWidth * pageHeight
	columnArea := 0.0
	if pageArea > 0 {
		columnArea = box.Area() / pageArea
	}

	return Fingerprint{
		CellCount:        len(cells),
		SingleColumnArea: columnArea,
		HasWideGutter:    detectWideGutter(cells, pageWidth),
	}
}

// detectWideGutter looks for a contiguous vertical band with no cell
// coverage wider than autoWhitespaceBandRatio of the page width, which is
// the classic two-column paper layout signature.
func detectWideGutter(cells []cell.TextCell, pageWidth float64) bool {
	if pageWidth <= 0 {
		return false
	}
	const bins = 100
	covered := make([]bool, bins)
	for _, c := range cells {
		startBin := int(c.BBox.Left / pageWidth * bins)
		endBin := int(c.BBox.Right / pageWidth * bins)
		if startBin < 0 {
			startBin = 0
		}
		if endBin >= bins {
			endBin = bins - 1
		}
		for b := startBin; b <= endBin; b++ {
			covered[b] = true
		}
	}

	runStart := -1
	for b := 0; b < bins; b++ {
		if !covered[b] {
			if runStart == -1 {
				runStart = b
			}
		} else if runStart != -1 {
			if float64(b-runStart)/bins >= autoWhitespaceBandRatio {
				return true
			}
			runStart = -1
		}
	}
	if runStart != -1 && float64(bins-runStart)/bins >= autoWhitespaceBandRatio {
		return true
	}
	return false
}

// conservativeCellCountDivisor and conservativeCoverageMargin tighten
// Auto's thresholds for ModeConservative: a page needs markedly fewer
// cells, and markedly more single-column coverage, before it is
// trusted to the heuristic path.
const (
	conservativeCellCountDivisor = 2
	conservativeCoverageMargin   = 0.1
)

// Decide chooses a Route for the page, given its configured Mode. In
// Auto mode, a page is routed to the heuristic path when it has few
// native cells, or when its text occupies a single wide column with no
// multi-column gutter — i.e. a simple document the ML layout model
// would not meaningfully improve on. Conservative applies the same
// rule with a stricter margin on both thresholds.
func Decide(mode Mode, fp Fingerprint, th Thresholds) Route {
	switch mode {
	case ModeMLAlways:
		return RouteML
	case ModeHeuristicAlways:
		return RouteHeuristic
	case ModeConservative:
		strict := Thresholds{
			CellCountFloor:      th.CellCountFloor / conservativeCellCountDivisor,
			CoverageCeiling:     th.CoverageCeiling + conservativeCoverageMargin,
			WhitespaceBandRatio: th.WhitespaceBandRatio,
		}
		return decideAuto(fp, strict)
	default: // ModeAuto
		return decideAuto(fp, th)
	}
}

func decideAuto(fp Fingerprint, th Thresholds) Route {
	if fp.CellCount < th.CellCountFloor {
		return RouteHeuristic
	}
	if fp.SingleColumnArea >= th.CoverageCeiling && !fp.HasWideGutter {
		return RouteHeuristic
	}
	return RouteML
}
