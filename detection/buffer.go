package detection

import (
	"github.com/nvr-ai/go-detect/inference"
	"github.com/pkg/errors"
)

const (
	// MaxBoxes is the number of detection slots per image in every supported convention.
	MaxBoxes = 100
	// BoxStride is the number of elements per box: left, top, right, bottom, score, label.
	BoxStride = 6
	// RowWidth is the canonical row length.
	RowWidth = MaxBoxes * BoxStride
)

// Buffer is the canonical [batch, RowWidth] float32 intermediate.
//
// Only the first count*BoxStride elements of a row hold boxes; the rest are
// left over from earlier decodes and never read.
type Buffer struct {
	t    *inference.Tensor
	data []float32
}

// NewBuffer allocates a buffer for up to batch rows.
func NewBuffer(batch int) (*Buffer, error) {
	if batch < 1 {
		batch = 1
	}
	t, err := inference.NewTensor("canonical", inference.Float, batch, RowWidth)
	if err != nil {
		return nil, err
	}
	data, _ := t.Float32s()
	return &Buffer{t: t, data: data}, nil
}

// Reset resizes the buffer to batch rows. Storage is reused when it is large enough.
func (b *Buffer) Reset(batch int) error {
	if batch < 1 {
		return errors.Errorf("buffer batch must be positive, got %d", batch)
	}
	if _, err := b.t.Resize(batch, RowWidth); err != nil {
		return err
	}
	b.data, _ = b.t.Float32s()
	return nil
}

// Batch returns the current number of rows.
func (b *Buffer) Batch() int {
	return b.t.Dim(0)
}

// Tensor exposes the buffer as a tensor.
func (b *Buffer) Tensor() *inference.Tensor {
	return b.t
}

// Set writes box j of row i.
func (b *Buffer) Set(i, j int, box [BoxStride]float32) error {
	off, err := b.offset(i, j)
	if err != nil {
		return err
	}
	copy(b.data[off:off+BoxStride], box[:])
	return nil
}

// At reads box j of row i.
func (b *Buffer) At(i, j int) ([BoxStride]float32, error) {
	var box [BoxStride]float32
	off, err := b.offset(i, j)
	if err != nil {
		return box, err
	}
	copy(box[:], b.data[off:off+BoxStride])
	return box, nil
}

func (b *Buffer) offset(i, j int) (int, error) {
	if i < 0 || i >= b.Batch() || j < 0 || j >= MaxBoxes {
		return 0, errors.Errorf("box (%d, %d) out of range for buffer [%d, %d]", i, j, b.Batch(), RowWidth)
	}
	return i*RowWidth + j*BoxStride, nil
}
