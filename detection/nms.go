package detection

import (
	"sort"

	"github.com/nvr-ai/go-detect/common"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap above which the lower scoring box is dropped.
	IoUThreshold float32 `yaml:"iou_threshold" json:"iou_threshold"`
	// ClassAware suppresses only boxes that share a label.
	ClassAware bool `yaml:"class_aware" json:"class_aware"`
}

// NMS returns a new result with overlapping detections suppressed.
//
// Models exported with an NMS head already return suppressed boxes; this is a
// second pass for heads that leave duplicates across classes or tiles.
//
// Arguments:
//   - cfg: The suppression parameters. A threshold of zero or less returns a copy.
//
// Returns:
//   - *DetResult: Surviving boxes ordered by descending confidence.
func (r *DetResult) NMS(cfg NMSConfig) *DetResult {
	boxes := r.Boxes()
	if cfg.IoUThreshold <= 0 || len(boxes) < 2 {
		return NewDetResult(boxes)
	}

	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})

	kept := make([]common.BoundingBox, 0, len(boxes))
	used := make([]bool, len(boxes))
	for i, anchor := range boxes {
		if used[i] {
			continue
		}
		kept = append(kept, anchor)

		for j := i + 1; j < len(boxes); j++ {
			if used[j] {
				continue
			}
			if cfg.ClassAware && boxes[j].ClassID() != anchor.ClassID() {
				continue
			}
			if anchor.IoU(boxes[j]) > cfg.IoUThreshold {
				used[j] = true
			}
		}
	}
	return NewDetResult(kept)
}
