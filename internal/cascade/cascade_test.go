package cascade

import (
	"testing"

	"github.com/docpipeline/core/internal/cell"
	"github.com/docpipeline/core/internal/geometry"
)

func box(l, t, r, b float64) geometry.BBox {
	return geometry.NewBBox(l, t, r, b, geometry.TopLeft)
}

func TestDecideMLAlways(t *testing.T) {
	if got := Decide(ModeMLAlways, Fingerprint{}, DefaultThresholds()); got != RouteML {
		t.Errorf("Decide(ml_always) = %v, want %v", got, RouteML)
	}
}

func TestDecideHeuristicAlways(t *testing.T) {
	if got := Decide(ModeHeuristicAlways, Fingerprint{CellCount: 1000}, DefaultThresholds()); got != RouteHeuristic {
		t.Errorf("Decide(heuristic_always) = %v, want %v", got, RouteHeuristic)
	}
}

func TestDecideAutoSparsePage(t *testing.T) {
	fp := Fingerprint{CellCount: 2}
	if got := Decide(ModeAuto, fp, DefaultThresholds()); got != RouteHeuristic {
		t.Errorf("Decide(auto, sparse) = %v, want %v", got, RouteHeuristic)
	}
}

func TestDecideAutoSimpleSingleColumn(t *testing.T) {
	// S5: a simple single-column page with dense text and no gutter
	// routes to the heuristic path.
	fp := Fingerprint{CellCount: 200, SingleColumnArea: 0.9, HasWideGutter: false}
	if got := Decide(ModeAuto, fp, DefaultThresholds()); got != RouteHeuristic {
		t.Errorf("Decide(auto, single-column) = %v, want %v", got, RouteHeuristic)
	}
}

func TestDecideAutoMultiColumn(t *testing.T) {
	fp := Fingerprint{CellCount: 200, SingleColumnArea: 0.4, HasWideGutter: true}
	if got := Decide(ModeAuto, fp, DefaultThresholds()); got != RouteML {
		t.Errorf("Decide(auto, multi-column) = %v, want %v", got, RouteML)
	}
}

func TestComputeFingerprintEmpty(t *testing.T) {
	fp := ComputeFingerprint(nil, 600, 800)
	if fp.CellCount != 0 {
		t.Errorf("CellCount = %d, want 0", fp.CellCount)
	}
}

func TestComputeFingerprintDetectsGutter(t *testing.T) {
	pageWidth := 600.0
	cells := []cell.TextCell{
		{BBox: box(0, 0, 200, 20)},
		{BBox: box(400, 0, 600, 20)},
	}
	fp := ComputeFingerprint(cells, pageWidth, 800)
	if !fp.HasWideGutter {
		t.Error("expected wide gutter to be detected between the two columns")
	}
}

func TestComputeFingerprintNoGutterWhenDense(t *testing.T) {
	pageWidth := 600.0
	cells := []cell.TextCell{
		{BBox: box(0, 0, 600, 20)},
	}
	fp := ComputeFingerprint(cells, pageWidth, 800)
	if fp.HasWideGutter {
		t.Error("expected no gutter for full-width single column")
	}
}
