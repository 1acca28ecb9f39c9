package detection

import (
	"testing"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAmirstanDecodeCounts verifies that counts equal the explicit count tensor.
//
// @example
// go test -v -run TestAmirstanDecodeCounts
func TestAmirstanDecodeCounts(t *testing.T) {
	images := [][][BoxStride]float32{sampleBoxes(0, 3), sampleBoxes(1, 0), sampleBoxes(2, MaxBoxes)}
	outputs := amirstanOutputs(t, images)

	counts, err := AmirstanParser{}.DecodeCounts(outputs, len(images))
	require.NoError(t, err)
	for i := range images {
		raw, err := outputs[0].Int32At(i, 0)
		require.NoError(t, err)
		assert.Equal(t, int(raw), counts[i], "image %d", i)
	}
	assert.Equal(t, []int{3, 0, MaxBoxes}, counts)

	t.Run("only the requested rows", func(t *testing.T) {
		counts, err := AmirstanParser{}.DecodeCounts(outputs, 1)
		require.NoError(t, err)
		assert.Equal(t, []int{3}, counts)
	})

	t.Run("count beyond capacity", func(t *testing.T) {
		set(t, outputs[0], MaxBoxes+1, 1, 0)
		_, err := AmirstanParser{}.DecodeCounts(outputs, len(images))
		assert.True(t, errors.Is(err, ErrDecodeInconsistency))
	})

	t.Run("negative count", func(t *testing.T) {
		set(t, outputs[0], -1, 1, 0)
		_, err := AmirstanParser{}.DecodeCounts(outputs, len(images))
		assert.True(t, errors.Is(err, ErrDecodeInconsistency))
	})

	t.Run("missing outputs", func(t *testing.T) {
		_, err := AmirstanParser{}.DecodeCounts(outputs[:2], 1)
		assert.Error(t, err)
	})
}

// TestMMDeployDecodeCounts verifies that counts equal the leading run of positive scores.
//
// @example
// go test -v -run TestMMDeployDecodeCounts
func TestMMDeployDecodeCounts(t *testing.T) {
	tests := []struct {
		name  string
		boxes [][BoxStride]float32
		want  int
	}{
		{name: "three detections", boxes: sampleBoxes(0, 3), want: 3},
		{name: "no detections", boxes: nil, want: 0},
		{name: "full capacity", boxes: sampleBoxes(0, MaxBoxes), want: MaxBoxes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputs := mmdeployOutputs(t, [][][BoxStride]float32{tt.boxes})
			counts, err := MMDeployParser{}.DecodeCounts(outputs, 1)
			require.NoError(t, err)
			assert.Equal(t, []int{tt.want}, counts)
		})
	}

	t.Run("negative first score", func(t *testing.T) {
		outputs := mmdeployOutputs(t, [][][BoxStride]float32{sampleBoxes(0, 4)})
		set(t, outputs[0], -0.5, 0, 0, 4)
		counts, err := MMDeployParser{}.DecodeCounts(outputs, 1)
		require.NoError(t, err)
		assert.Equal(t, []int{0}, counts)
	})

	t.Run("rows beyond batch", func(t *testing.T) {
		outputs := mmdeployOutputs(t, [][][BoxStride]float32{sampleBoxes(0, 1)})
		_, err := MMDeployParser{}.DecodeCounts(outputs, 2)
		assert.Error(t, err)
	})
}

// TestDecodeRoundTrip verifies that k encoded boxes per image decode to exactly those k boxes.
//
// @example
// go test -v -run TestDecodeRoundTrip
func TestDecodeRoundTrip(t *testing.T) {
	images := [][][BoxStride]float32{sampleBoxes(0, 5), sampleBoxes(1, 0), sampleBoxes(2, 17), sampleBoxes(3, MaxBoxes)}

	tests := []struct {
		parser  Parser
		outputs []*inference.Tensor
	}{
		{parser: AmirstanParser{}, outputs: amirstanOutputs(t, images)},
		{parser: MMDeployParser{}, outputs: mmdeployOutputs(t, images)},
	}

	for _, tt := range tests {
		t.Run(tt.parser.Name(), func(t *testing.T) {
			decoder, err := NewDecoder(tt.parser, inference.Host, 1)
			require.NoError(t, err)

			results, err := decoder.Decode(tt.outputs, len(images))
			require.NoError(t, err)
			require.Len(t, results, len(images))

			for i, want := range images {
				boxes := results[i].Boxes()
				require.Len(t, boxes, len(want), "image %d", i)
				for j, w := range want {
					b := boxes[j]
					got := [BoxStride]float32{b.Left, b.Top, b.Right, b.Bottom, b.Confidence, b.Label}
					for k := range w {
						assert.InDelta(t, w[k], got[k], 1e-5, "image %d box %d element %d", i, j, k)
					}
				}
			}
		})
	}
}

// TestParserByName verifies name lookup and aliases.
//
// @example
// go test -v -run TestParserByName
func TestParserByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "amirstan", want: AmirstanName},
		{name: "faster_rcnn", want: AmirstanName},
		{name: " MMDeploy ", want: MMDeployName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParserByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	_, err := ParserByName("yolo")
	assert.True(t, errors.Is(err, ErrUnknownParser))
}
