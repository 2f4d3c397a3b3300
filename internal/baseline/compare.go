package baseline

import (
	"fmt"
	"math"

	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/resize"
)

// CompareResizeExact asserts §8 property 5: resize output must be
// byte-for-byte identical to the reference, not merely close. Returns
// the first mismatching pixel's coordinates and values for a useful
// test failure message.
func CompareResizeExact(got *resize.Image, want Array) error {
	if len(want.Shape) != 3 {
		return fmt.Errorf("baseline: resize reference must be HWC, got shape %v", want.Shape)
	}
	h, w, c := want.Shape[0], want.Shape[1], want.Shape[2]
	if got.Height != h || got.Width != w || got.Channels != c {
		return fmt.Errorf("baseline: resize shape mismatch: got %dx%dx%d, want %dx%dx%d",
			got.Height, got.Width, got.Channels, h, w, c)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				gv := got.Pix[(y*w+x)*c+ch]
				wv := uint8(want.At(y, x, ch))
				if gv != wv {
					return fmt.Errorf("baseline: resize mismatch at (y=%d,x=%d,c=%d): got %d want %d", y, x, ch, gv, wv)
				}
			}
		}
	}
	return nil
}

// MaxAbsDiff returns the largest |got[i]-want[i]| over the flattened
// arrays, or an error if their lengths disagree. Used for §8 property 7
// (table class-logit / coordinate tolerances) and the code/formula
// logit checks that back property 8's parity requirement.
func MaxAbsDiff(got, want Array) (float64, error) {
	if len(got.Data) != len(want.Data) {
		return 0, fmt.Errorf("baseline: length mismatch: got %d want %d", len(got.Data), len(want.Data))
	}
	max := 0.0
	for i := range got.Data {
		d := math.Abs(got.Data[i] - want.Data[i])
		if d > max {
			max = d
		}
	}
	return max, nil
}

// WithinTolerance reports whether MaxAbsDiff(got, want) < tol, and
// surfaces the actual diff in the returned error so test failures are
// self-explanatory.
func WithinTolerance(got, want Array, tol float64) error {
	diff, err := MaxAbsDiff(got, want)
	if err != nil {
		return err
	}
	if diff >= tol {
		return fmt.Errorf("baseline: max-abs-diff %.6g exceeds tolerance %.6g", diff, tol)
	}
	return nil
}

// LevenshteinSimilarity returns a value in [0,1]: 1 minus the edit
// distance normalized by the longer string's rune length. Backs §8
// property 8's "≥ 95% Levenshtein similarity" code/formula acceptance
// criterion (§4.9).
func LevenshteinSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	dist := levenshteinDistance(ra, rb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func levenshteinDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// PositionError measures Euclidean distance in pixels between two box
// centers — the per-region metric backing §8 property 6's OCR position
// tolerance (<50px on a majority of detections, average <50px).
func PositionError(got, want geometry.BBox) float64 {
	gx, gy := (got.Left+got.Right)/2, (got.Top+got.Bottom)/2
	wx, wy := (want.Left+want.Right)/2, (want.Top+want.Bottom)/2
	return math.Hypot(gx-wx, gy-wy)
}

// OCRPositionReport summarizes §8 property 6 over a matched set of
// (detected, reference) box pairs, already IoU-matched by the caller.
type OCRPositionReport struct {
	Matched          int
	WithinTolerance  int
	Average          float64
}

// FractionWithinTolerance returns the share of matched detections whose
// position error is below tol.
func (r OCRPositionReport) FractionWithinTolerance() float64 {
	if r.Matched == 0 {
		return 1.0
	}
	return float64(r.WithinTolerance) / float64(r.Matched)
}

// EvaluateOCRPositions builds an OCRPositionReport from matched pairs,
// each detected box alongside its IoU-matched reference box, using the
// 50px threshold named in §8 and §4.7.
func EvaluateOCRPositions(pairs [][2]geometry.BBox, tol float64) OCRPositionReport {
	var report OCRPositionReport
	sum := 0.0
	for _, pair := range pairs {
		err := PositionError(pair[0], pair[1])
		sum += err
		report.Matched++
		if err < tol {
			report.WithinTolerance++
		}
	}
	if report.Matched > 0 {
		report.Average = sum / float64(report.Matched)
	}
	return report
}

// TokensEqual reports whether two OTSL token sequences are an exact
// match, per §8 property 7's "tag sequence exact match" requirement.
func TokensEqual[T comparable](got, want []T) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
