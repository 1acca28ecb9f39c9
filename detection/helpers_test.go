package detection

import (
	"testing"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/stretchr/testify/require"
)

// garbage fills every slot past the valid detections so tests catch over-reads.
const garbage = 999

func newTensor(t testing.TB, name string, dt inference.DataType, shape ...int) *inference.Tensor {
	t.Helper()
	tensor, err := inference.NewTensor(name, dt, shape...)
	require.NoError(t, err)
	return tensor
}

func set(t testing.TB, tensor *inference.Tensor, v float32, coords ...int) {
	t.Helper()
	require.NoError(t, tensor.SetFloat32At(v, coords...))
}

// sampleBoxes returns k distinct boxes for image i.
func sampleBoxes(i, k int) [][BoxStride]float32 {
	boxes := make([][BoxStride]float32, k)
	for j := range boxes {
		f := float32(i*100 + j)
		boxes[j] = [BoxStride]float32{f, f + 1, f + 10.5, f + 20.25, 0.5 + float32(j%5)/10, float32(j % 7)}
	}
	return boxes
}

// amirstanOutputs encodes images in the four-output convention.
func amirstanOutputs(t testing.TB, images [][][BoxStride]float32) []*inference.Tensor {
	t.Helper()
	b := len(images)
	num := newTensor(t, "num_detections", inference.Int32, b, 1)
	boxes := newTensor(t, "boxes", inference.Float, b, MaxBoxes, 4)
	scores := newTensor(t, "scores", inference.Float, b, MaxBoxes)
	classes := newTensor(t, "classes", inference.Float, b, MaxBoxes)

	for i, dets := range images {
		set(t, num, float32(len(dets)), i, 0)
		for j := 0; j < MaxBoxes; j++ {
			box := [BoxStride]float32{garbage, garbage, garbage, garbage, garbage, garbage}
			if j < len(dets) {
				box = dets[j]
			}
			for k := 0; k < 4; k++ {
				set(t, boxes, box[k], i, j, k)
			}
			set(t, scores, box[4], i, j)
			set(t, classes, box[5], i, j)
		}
	}
	return []*inference.Tensor{num, boxes, scores, classes}
}

// mmdeployOutputs encodes images in the two-output convention. The slot after the
// last detection has a zero score; later slots hold positive garbage.
func mmdeployOutputs(t testing.TB, images [][][BoxStride]float32) []*inference.Tensor {
	t.Helper()
	b := len(images)
	dets := newTensor(t, "dets", inference.Float, b, MaxBoxes, 5)
	labels := newTensor(t, "labels", inference.Int32, b, MaxBoxes)

	for i, boxes := range images {
		for j := 0; j < MaxBoxes; j++ {
			box := [BoxStride]float32{garbage, garbage, garbage, garbage, garbage, garbage}
			switch {
			case j < len(boxes):
				box = boxes[j]
			case j == len(boxes):
				box[4] = 0
			}
			for k := 0; k < 5; k++ {
				set(t, dets, box[k], i, j, k)
			}
			set(t, labels, box[5], i, j)
		}
	}
	return []*inference.Tensor{dets, labels}
}
