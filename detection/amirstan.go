package detection

import (
	"github.com/nvr-ai/go-detect/inference"
	"github.com/pkg/errors"
)

// AmirstanName is the name of the four-output count/boxes/scores/classes convention.
const AmirstanName = "amirstan"

// AmirstanParser decodes the batched-NMS plugin layout used by Faster R-CNN exports:
//
//	0: num_detections [b,1]       int32
//	1: boxes          [b,100,4]   float
//	2: scores         [b,100]     float
//	3: classes        [b,100]     float
type AmirstanParser struct{}

func (AmirstanParser) Name() string {
	return AmirstanName
}

func (AmirstanParser) Schema() Schema {
	return Schema{
		Name: AmirstanName,
		Outputs: []OutputSpec{
			{DataType: inference.Int32, Shape: []int{1}},
			{DataType: inference.Float, Shape: []int{MaxBoxes, 4}},
			{DataType: inference.Float, Shape: []int{MaxBoxes}},
			{DataType: inference.Float, Shape: []int{MaxBoxes}},
		},
	}
}

// DecodeCounts reads the explicit count of each image.
func (p AmirstanParser) DecodeCounts(outputs []*inference.Tensor, rows int) ([]int, error) {
	host, err := hostOutputs(AmirstanName, outputs, 4)
	if err != nil {
		return nil, err
	}
	limit := capacity(host[1])

	r := &reader{}
	counts := make([]int, rows)
	for i := range counts {
		n := int(r.i32(host[0], i, 0))
		if r.err != nil {
			return nil, errors.Wrapf(r.err, "%s: count of image %d", AmirstanName, i)
		}
		if n < 0 || n > limit {
			return nil, errors.Wrapf(ErrDecodeInconsistency,
				"%s: image %d reports %d detections, capacity %d", AmirstanName, i, n, limit)
		}
		counts[i] = n
	}
	return counts, nil
}

// DecodeBoxes gathers box, score and class of every counted detection.
func (p AmirstanParser) DecodeBoxes(outputs []*inference.Tensor, counts []int, buf *Buffer) error {
	host, err := hostOutputs(AmirstanName, outputs, 4)
	if err != nil {
		return err
	}
	boxes, scores, classes := host[1], host[2], host[3]

	r := &reader{}
	for i, n := range counts {
		for j := 0; j < n; j++ {
			box := [BoxStride]float32{
				r.f32(boxes, i, j, 0),
				r.f32(boxes, i, j, 1),
				r.f32(boxes, i, j, 2),
				r.f32(boxes, i, j, 3),
				r.f32(scores, i, j),
				r.f32(classes, i, j),
			}
			if r.err != nil {
				return errors.Wrapf(r.err, "%s: box %d of image %d", AmirstanName, j, i)
			}
			if err := buf.Set(i, j, box); err != nil {
				return err
			}
		}
	}
	return nil
}
