// Package layoutdetect turns a layout model's raw output tensors into
// RawCluster candidates (C5): decoding the detection head's boxes/
// scores/labels, applying non-maximum suppression, and dropping
// detections below a confidence floor. Everything downstream (C6-C11)
// works on RawCluster, never on the tensor layout.
package layoutdetect

import (
	"sort"

	"github.com/docpipeline/core/internal/geometry"
	"github.com/docpipeline/core/internal/preprocess"
)

// Label is a closed enum of layout classes the detector emits,
// generalizing the reference implementation's ElementType set.
type Label string

const (
	LabelText          Label = "text"
	LabelTitle         Label = "title"
	LabelSectionHeader Label = "section_header"
	LabelCaption       Label = "caption"
	LabelFootnote      Label = "footnote"
	LabelFormula       Label = "formula"
	LabelCode          Label = "code"
	LabelTable         Label = "table"
	LabelPicture       Label = "picture"
	LabelListItem      Label = "list_item"
	LabelPageHeader    Label = "page_header"
	LabelPageFooter    Label = "page_footer"
)

var labelByClassID = map[int]Label{
	0:  LabelText,
	1:  LabelTitle,
	2:  LabelSectionHeader,
	3:  LabelCaption,
	4:  LabelFootnote,
	5:  LabelFormula,
	6:  LabelTable,
	7:  LabelPicture,
	8:  LabelListItem,
	9:  LabelPageHeader,
	10: LabelPageFooter,
	11: LabelCode,
}

// RawCluster is one surviving detection: a label, a confidence score,
// and a bounding box in the rasterized page's pixel space.
type RawCluster struct {
	Label      Label
	Confidence float64
	BBox       geometry.BBox
}

// Config tunes decode/NMS/filter behavior.
type Config struct {
	ConfidenceFloor float64 // drop detections below this score
	IoUThreshold    float64 // NMS suppression threshold
}

// DefaultConfig mirrors the reference detector's defaults.
func DefaultConfig() Config {
	return Config{ConfidenceFloor: 0.3, IoUThreshold: 0.5}
}

// Decode parses a layout detector's output tensors (boxes [N,4] in
// cx,cy,w,h normalized [0,1], scores [N], labels [N] class IDs),
// rescales boxes to imgWidth/imgHeight pixel space, applies the
// confidence floor, then class-agnostic NMS, and returns survivors
// sorted by descending confidence.
func Decode(outputs map[string]preprocess.Tensor, imgWidth, imgHeight float64, cfg Config) []RawCluster {
	boxes := outputs["boxes"]
	scores := outputs["scores"]
	labels := outputs["labels"]

	n := len(scores.Data)
	candidates := make([]RawCluster, 0, n)
	for i := 0; i < n; i++ {
		conf := float64(scores.Data[i])
		if conf < cfg.ConfidenceFloor {
			continue
		}

		classID := 0
		if i < len(labels.Data) {
			classID = int(labels.Data[i])
		}
		label, ok := labelByClassID[classID]
		if !ok {
			continue
		}

		base := i * 4
		if base+4 > len(boxes.Data) {
			continue
		}
		cx := float64(boxes.Data[base]) * imgWidth
		cy := float64(boxes.Data[base+1]) * imgHeight
		w := float64(boxes.Data[base+2]) * imgWidth
		h := float64(boxes.Data[base+3]) * imgHeight

		bbox := geometry.NewBBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2, geometry.TopLeft)
		candidates = append(candidates, RawCluster{Label: label, Confidence: conf, BBox: bbox})
	}

	return nonMaxSuppress(candidates, cfg.IoUThreshold)
}

// nonMaxSuppress runs class-agnostic greedy NMS: sort by confidence
// descending, keep the highest surviving box, drop any remaining box
// (of any label) whose IoU with it exceeds the threshold, repeat.
func nonMaxSuppress(candidates []RawCluster, iouThreshold float64) []RawCluster {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	kept := make([]RawCluster, 0, len(candidates))
	suppressed := make([]bool, len(candidates))

	for i := range candidates {
		if suppressed[i] {
			continue
		}
		kept = append(kept, candidates[i])
		for j := i + 1; j < len(candidates); j++ {
			if suppressed[j] {
				continue
			}
			if geometry.IoU(candidates[i].BBox, candidates[j].BBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}
