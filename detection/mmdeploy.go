package detection

import (
	"github.com/nvr-ai/go-detect/inference"
	"github.com/pkg/errors"
)

// MMDeployName is the name of the two-output dets/labels convention.
const MMDeployName = "mmdeploy"

// MMDeployParser decodes the MMDeploy detection head:
//
//	0: dets   [b,100,5] float  (left, top, right, bottom, score)
//	1: labels [b,100]   int32
//
// There is no count output. Valid detections are front-packed with positive
// scores, so the count is the length of the leading positive run.
type MMDeployParser struct{}

func (MMDeployParser) Name() string {
	return MMDeployName
}

func (MMDeployParser) Schema() Schema {
	return Schema{
		Name: MMDeployName,
		Outputs: []OutputSpec{
			{DataType: inference.Float, Shape: []int{MaxBoxes, 5}},
			{DataType: inference.Int32, Shape: []int{MaxBoxes}},
		},
	}
}

// DecodeCounts scans each image until the first score <= 0.
func (p MMDeployParser) DecodeCounts(outputs []*inference.Tensor, rows int) ([]int, error) {
	host, err := hostOutputs(MMDeployName, outputs, 2)
	if err != nil {
		return nil, err
	}
	dets := host[0]
	limit := capacity(dets)

	r := &reader{}
	counts := make([]int, rows)
	for i := range counts {
		n := 0
		for n < limit && r.f32(dets, i, n, 4) > 0 {
			n++
		}
		if r.err != nil {
			return nil, errors.Wrapf(r.err, "%s: scores of image %d", MMDeployName, i)
		}
		counts[i] = n
	}
	return counts, nil
}

// DecodeBoxes copies dets and converts labels to the float tag.
func (p MMDeployParser) DecodeBoxes(outputs []*inference.Tensor, counts []int, buf *Buffer) error {
	host, err := hostOutputs(MMDeployName, outputs, 2)
	if err != nil {
		return err
	}
	dets, labels := host[0], host[1]

	r := &reader{}
	for i, n := range counts {
		for j := 0; j < n; j++ {
			box := [BoxStride]float32{
				r.f32(dets, i, j, 0),
				r.f32(dets, i, j, 1),
				r.f32(dets, i, j, 2),
				r.f32(dets, i, j, 3),
				r.f32(dets, i, j, 4),
				r.f32(labels, i, j),
			}
			if r.err != nil {
				return errors.Wrapf(r.err, "%s: box %d of image %d", MMDeployName, j, i)
			}
			if err := buf.Set(i, j, box); err != nil {
				return err
			}
		}
	}
	return nil
}
