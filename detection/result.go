package detection

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/logger"
	"gocv.io/x/gocv"
)

// BoxColor is the BGR (0x27, 0xC1, 0x36) outline used by Draw.
var BoxColor = color.RGBA{R: 0x36, G: 0xC1, B: 0x27, A: 0}

const boxThickness = 2

// DetResult holds the detections of one image.
type DetResult struct {
	boxes []common.BoundingBox
}

// NewDetResult creates a result that owns boxes.
func NewDetResult(boxes []common.BoundingBox) *DetResult {
	return &DetResult{boxes: boxes}
}

// Boxes returns a copy of the detections.
func (r *DetResult) Boxes() []common.BoundingBox {
	boxes := make([]common.BoundingBox, len(r.boxes))
	copy(boxes, r.boxes)
	return boxes
}

// MutableBoxes returns the detections for in-place edits. DefectNum follows any change.
func (r *DetResult) MutableBoxes() *[]common.BoundingBox {
	return &r.boxes
}

// DefectNum is the number of detections.
func (r *DetResult) DefectNum() int {
	return len(r.boxes)
}

// OK reports whether the image has no detections.
func (r *DetResult) OK() bool {
	return len(r.boxes) == 0
}

// Negative is an alias of OK.
func (r *DetResult) Negative() bool {
	return r.OK()
}

// String formats every detection, one per line.
//
// @example
// result is:
// obj1: left=10.000000, top=20.000000, right=30.000000, bottom=40.000000, confidence=0.900000, label=1.000000
func (r *DetResult) String() string {
	var sb strings.Builder
	sb.WriteString("result is:\n")
	if len(r.boxes) == 0 {
		sb.WriteString("empty.")
		return sb.String()
	}
	for i, b := range r.boxes {
		fmt.Fprintf(&sb, "obj%d: left=%f, top=%f, right=%f, bottom=%f, confidence=%f, label=%f\n",
			i+1, b.Left, b.Top, b.Right, b.Bottom, b.Confidence, b.Label)
	}
	return sb.String()
}

// Draw returns a copy of src with every detection outlined and labelled.
//
// Boxes with zero width or height are skipped. Labels use names[label] when the
// label indexes names, otherwise the numeric label.
//
// Arguments:
//   - src: The image the detections were made on.
//   - names: Optional class names.
//
// Returns:
//   - gocv.Mat: The annotated copy, owned by the caller. Empty if src is empty.
func (r *DetResult) Draw(src gocv.Mat, names []string) gocv.Mat {
	if src.Empty() {
		logger.Log().Warn("cannot draw detections on an empty image")
		return gocv.NewMat()
	}

	dst := src.Clone()
	for _, b := range r.boxes {
		rect := b.ToRect()
		if rect.Dx() == 0 || rect.Dy() == 0 {
			continue
		}
		gocv.Rectangle(&dst, rect, BoxColor, boxThickness)

		text := fmt.Sprintf("%s %.2f", labelText(b, names), b.Confidence)
		origin := image.Pt(rect.Min.X, max(rect.Min.Y-4, 12))
		gocv.PutText(&dst, text, origin, gocv.FontHersheySimplex, 0.5, BoxColor, 1)
	}
	return dst
}

// FilterByConfidence returns a new result with the detections scoring at least minConfidence.
func (r *DetResult) FilterByConfidence(minConfidence float32) *DetResult {
	kept := make([]common.BoundingBox, 0, len(r.boxes))
	for _, b := range r.boxes {
		if b.Confidence >= minConfidence {
			kept = append(kept, b)
		}
	}
	return NewDetResult(kept)
}

// Scale returns a new result with every box divided by the resize factors.
func (r *DetResult) Scale(fx, fy float32) *DetResult {
	scaled := make([]common.BoundingBox, len(r.boxes))
	for i, b := range r.boxes {
		scaled[i] = b.Scale(fx, fy)
	}
	return NewDetResult(scaled)
}

// MarshalJSON encodes the result as {"defect_num": n, "boxes": [...]}.
func (r *DetResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DefectNum int                  `json:"defect_num"`
		Boxes     []common.BoundingBox `json:"boxes"`
	}{
		DefectNum: len(r.boxes),
		Boxes:     r.Boxes(),
	})
}

func labelText(b common.BoundingBox, names []string) string {
	id := b.ClassID()
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return fmt.Sprintf("%g", b.Label)
}
