package inference

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	testMean = [3]float32{123.675, 116.28, 103.53}
	testStd  = [3]float32{58.395, 57.12, 57.375}
)

// TestSetNormMat verifies per-channel normalization into NCHW rows.
//
// @example
// go test -v -run TestSetNormMat
func TestSetNormMat(t *testing.T) {
	input, err := NewTensor("images", Float, 2, 3, 4, 6)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(6, 4), input.InputSize())

	t.Run("same size image fills only its slot", func(t *testing.T) {
		img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 4, 6, gocv.MatTypeCV8UC3)
		defer img.Close()

		require.NoError(t, input.SetNormMat(1, img, testMean, testStd))

		data, _ := input.Float32s()
		plane := 4 * 6
		for c, px := range []float32{10, 20, 30} {
			want := (px - testMean[c]) / testStd[c]
			assert.InDelta(t, want, data[3*plane+c*plane], 1e-5, "channel %d first pixel", c)
			assert.InDelta(t, want, data[3*plane+c*plane+plane-1], 1e-5, "channel %d last pixel", c)
		}
		assert.Equal(t, float32(0), data[0], "slot 0 is untouched")
	})

	t.Run("larger image is resized", func(t *testing.T) {
		img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 40, 60, gocv.MatTypeCV8UC3)
		defer img.Close()

		require.NoError(t, input.SetNormMat(0, img, testMean, testStd))
		v, err := input.Float32At(0, 2, 3, 5)
		require.NoError(t, err)
		assert.InDelta(t, -testMean[2]/testStd[2], v, 1e-5)
	})

	t.Run("grayscale is expanded to three channels", func(t *testing.T) {
		img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 0, 0, 0), 4, 6, gocv.MatTypeCV8U)
		defer img.Close()

		require.NoError(t, input.SetNormMat(0, img, [3]float32{}, [3]float32{1, 1, 1}))
		for c := 0; c < 3; c++ {
			v, err := input.Float32At(0, c, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, float32(50), v)
		}
	})
}

// TestSetNormMatErrors verifies that unusable inputs are rejected without writing.
//
// @example
// go test -v -run TestSetNormMatErrors
func TestSetNormMatErrors(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 4, 6, gocv.MatTypeCV8UC3)
	defer img.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	input, err := NewTensor("images", Float, 1, 3, 4, 6)
	require.NoError(t, err)
	labels, err := NewTensor("labels", Int32, 1, 3, 4, 6)
	require.NoError(t, err)
	flat, err := NewTensor("flat", Float, 1, 72)
	require.NoError(t, err)

	tests := []struct {
		name   string
		tensor *Tensor
		slot   int
		img    gocv.Mat
		std    [3]float32
	}{
		{name: "integer tensor", tensor: labels, img: img, std: testStd},
		{name: "not NCHW", tensor: flat, img: img, std: testStd},
		{name: "slot out of range", tensor: input, slot: 1, img: img, std: testStd},
		{name: "negative slot", tensor: input, slot: -1, img: img, std: testStd},
		{name: "empty image", tensor: input, img: empty, std: testStd},
		{name: "zero std", tensor: input, img: img, std: [3]float32{1, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.tensor.SetNormMat(tt.slot, tt.img, testMean, tt.std))
		})
	}
}
