package detection

import (
	"testing"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deviceParser decodes every image as one fixed box.
type deviceParser struct {
	MMDeployParser
	calls int
}

func (p *deviceParser) DecodeDevice(outputs []*inference.Tensor, rows int, buf *Buffer) ([]int, error) {
	p.calls++
	counts := make([]int, rows)
	for i := range counts {
		if err := buf.Set(i, 0, [BoxStride]float32{1, 2, 3, 4, 0.9, 5}); err != nil {
			return nil, err
		}
		counts[i] = 1
	}
	return counts, nil
}

// TestDecoderRows verifies that only the requested rows are decoded and that
// requests past the output batch are clamped.
//
// @example
// go test -v -run TestDecoderRows
func TestDecoderRows(t *testing.T) {
	images := make([][][BoxStride]float32, 8)
	for i := range images {
		images[i] = sampleBoxes(i, i+1)
	}
	outputs := mmdeployOutputs(t, images)

	decoder, err := NewDecoder(MMDeployParser{}, inference.Host, 8)
	require.NoError(t, err)

	results, err := decoder.Decode(outputs, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, decoder.buffer.Batch(), "buffer holds only the decoded rows")
	for i, r := range results {
		assert.Equal(t, i+1, r.DefectNum())
	}

	results, err = decoder.Decode(outputs, 12)
	require.NoError(t, err)
	assert.Len(t, results, 8)

	results, err = decoder.Decode(outputs, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = decoder.Decode(nil, 1)
	assert.Error(t, err)
}

// TestDecoderDevice verifies the device decode path with and without parser support.
//
// @example
// go test -v -run TestDecoderDevice
func TestDecoderDevice(t *testing.T) {
	outputs := mmdeployOutputs(t, [][][BoxStride]float32{sampleBoxes(0, 4), sampleBoxes(1, 2)})

	t.Run("unsupported parser yields empty results", func(t *testing.T) {
		decoder, err := NewDecoder(MMDeployParser{}, inference.GPU, 2)
		require.NoError(t, err)

		results, err := decoder.Decode(outputs, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.True(t, r.OK())
		}
	})

	t.Run("device parser is used", func(t *testing.T) {
		parser := &deviceParser{}
		decoder, err := NewDecoder(parser, inference.GPU, 2)
		require.NoError(t, err)

		results, err := decoder.Decode(outputs, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, parser.calls)
		require.Len(t, results, 2)
		assert.Equal(t, float32(5), results[1].Boxes()[0].Label)
	})

	_, err := NewDecoder(nil, inference.Host, 1)
	assert.Error(t, err)
}

// TestMaterialize verifies that results copy exactly count boxes per row and that
// inconsistent counts are rejected.
//
// @example
// go test -v -run TestMaterialize
func TestMaterialize(t *testing.T) {
	buf, err := NewBuffer(2)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		for j := 0; j < MaxBoxes; j++ {
			require.NoError(t, buf.Set(i, j, [BoxStride]float32{garbage, garbage, garbage, garbage, garbage, garbage}))
		}
	}
	require.NoError(t, buf.Set(0, 0, [BoxStride]float32{1, 2, 3, 4, 0.5, 1}))

	results, err := Materialize(buf, []int{1, 0})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].DefectNum())
	assert.Equal(t, float32(0.5), results[0].Boxes()[0].Confidence)
	assert.True(t, results[1].OK(), "garbage past the count is never read")

	t.Run("boxes are copied out of the buffer", func(t *testing.T) {
		require.NoError(t, buf.Set(0, 0, [BoxStride]float32{}))
		assert.Equal(t, float32(1), results[0].Boxes()[0].Left)
	})

	tests := []struct {
		name   string
		counts []int
	}{
		{name: "too few counts", counts: []int{1}},
		{name: "too many counts", counts: []int{1, 0, 0}},
		{name: "negative count", counts: []int{-1, 0}},
		{name: "count over capacity", counts: []int{MaxBoxes + 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Materialize(buf, tt.counts)
			assert.True(t, errors.Is(err, ErrDecodeInconsistency), "got %v", err)
		})
	}
}

// TestBufferReset verifies that the canonical buffer is reused across batch sizes.
//
// @example
// go test -v -run TestBufferReset
func TestBufferReset(t *testing.T) {
	buf, err := NewBuffer(8)
	require.NoError(t, err)
	require.NoError(t, buf.Set(7, 99, [BoxStride]float32{1, 1, 1, 1, 1, 1}))

	require.NoError(t, buf.Reset(2))
	assert.Equal(t, 2, buf.Batch())
	assert.Equal(t, []int{2, RowWidth}, buf.Tensor().Shape())
	assert.Error(t, buf.Set(2, 0, [BoxStride]float32{}), "row past the batch")
	assert.Error(t, buf.Set(0, MaxBoxes, [BoxStride]float32{}), "slot past capacity")

	require.NoError(t, buf.Reset(8))
	box, err := buf.At(7, 99)
	require.NoError(t, err)
	assert.Equal(t, [BoxStride]float32{1, 1, 1, 1, 1, 1}, box, "storage survives a shrink and regrow")

	assert.Error(t, buf.Reset(0))
}
