package detection

import (
	"encoding/json"
	"testing"

	"github.com/nvr-ai/go-detect/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// TestDetResultString verifies the text format of a result.
//
// @example
// go test -v -run TestDetResultString
func TestDetResultString(t *testing.T) {
	tests := []struct {
		name     string
		boxes    []common.BoundingBox
		expected string
	}{
		{
			name:     "no detections",
			boxes:    nil,
			expected: "result is:\nempty.",
		},
		{
			name: "two detections",
			boxes: []common.BoundingBox{
				{Left: 10, Top: 20, Right: 30, Bottom: 40, Confidence: 0.5, Label: 1},
				{Left: 1.5, Top: 2.25, Right: 3, Bottom: 4, Confidence: 0.25, Label: 0},
			},
			expected: "result is:\n" +
				"obj1: left=10.000000, top=20.000000, right=30.000000, bottom=40.000000, confidence=0.500000, label=1.000000\n" +
				"obj2: left=1.500000, top=2.250000, right=3.000000, bottom=4.000000, confidence=0.250000, label=0.000000\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewDetResult(tt.boxes).String())
		})
	}
}

// TestDetResultViews verifies that the defect count tracks edits made through the mutable view
// and that the read-only view is a copy.
//
// @example
// go test -v -run TestDetResultViews
func TestDetResultViews(t *testing.T) {
	r := NewDetResult(nil)
	assert.True(t, r.OK())
	assert.True(t, r.Negative())
	assert.Equal(t, 0, r.DefectNum())

	boxes := r.MutableBoxes()
	*boxes = append(*boxes, common.BoundingBox{Right: 1, Bottom: 1, Confidence: 0.9})
	assert.Equal(t, 1, r.DefectNum())
	assert.False(t, r.OK())

	copied := r.Boxes()
	copied[0].Confidence = 0
	assert.Equal(t, float32(0.9), r.Boxes()[0].Confidence, "read-only view does not alias")

	*boxes = (*boxes)[:0]
	assert.Equal(t, 0, r.DefectNum())
	assert.True(t, r.OK())
}

// TestDetResultTransforms verifies confidence filtering, rescaling and JSON encoding.
//
// @example
// go test -v -run TestDetResultTransforms
func TestDetResultTransforms(t *testing.T) {
	r := NewDetResult([]common.BoundingBox{
		{Left: 10, Top: 10, Right: 20, Bottom: 20, Confidence: 0.9, Label: 2},
		{Left: 0, Top: 0, Right: 4, Bottom: 4, Confidence: 0.1, Label: 1},
	})

	filtered := r.FilterByConfidence(0.5)
	assert.Equal(t, 1, filtered.DefectNum())
	assert.Equal(t, 2, r.DefectNum(), "filter does not modify the receiver")

	scaled := r.Scale(0.5, 0.5)
	assert.Equal(t, float32(40), scaled.Boxes()[0].Right)

	data, err := json.Marshal(filtered)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"defect_num":1,"boxes":[{"left":10,"top":10,"right":20,"bottom":20,"confidence":0.9,"label":2}]}`,
		string(data))

	data, err = json.Marshal(NewDetResult(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"defect_num":0,"boxes":[]}`, string(data))
}

// TestDetResultDraw verifies that drawing works on a copy and skips degenerate boxes.
//
// @example
// go test -v -run TestDetResultDraw
func TestDetResultDraw(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC3)
	defer src.Close()

	r := NewDetResult([]common.BoundingBox{
		{Left: 10, Top: 10, Right: 60, Bottom: 60, Confidence: 0.8, Label: 0},
		{Left: 70, Top: 70, Right: 70, Bottom: 90, Confidence: 0.8, Label: 1},
	})

	dst := r.Draw(src, []string{"crack"})
	defer dst.Close()
	require.False(t, dst.Empty())

	edge := dst.GetVecbAt(35, 10)
	assert.Equal(t, []uint8{BoxColor.B, BoxColor.G, BoxColor.R}, []uint8{edge[0], edge[1], edge[2]},
		"left edge is drawn in the box color")
	assert.Equal(t, uint8(0), src.GetVecbAt(35, 10)[1], "source is untouched")
	assert.Equal(t, uint8(0), dst.GetVecbAt(80, 70)[1], "zero-width box is skipped")

	empty := gocv.NewMat()
	defer empty.Close()
	out := r.Draw(empty, nil)
	defer out.Close()
	assert.True(t, out.Empty())
}
