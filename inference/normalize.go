package inference

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// InputSize returns the width and height an NCHW input tensor expects.
func (t *Tensor) InputSize() image.Point {
	return image.Pt(t.Dim(3), t.Dim(2))
}

// SetNormMat writes a normalized image into one batch row of an NCHW float tensor.
//
// The image is converted to 3 channels and resized to the tensor's spatial size
// when needed, then each element is written as (pixel - mean[c]) / std[c] in the
// Mat's own channel order.
//
// Arguments:
//   - slot: The batch row to fill.
//   - img: An 8-bit image with 1, 3 or 4 channels.
//   - mean: Per-channel mean.
//   - std: Per-channel standard deviation, all non-zero.
//
// Returns:
//   - error: An error if the tensor, slot or image cannot be used.
//
// @example
// err := input.SetNormMat(0, img, [3]float32{123.675, 116.28, 103.53}, [3]float32{58.395, 57.12, 57.375})
func (t *Tensor) SetNormMat(slot int, img gocv.Mat, mean, std [3]float32) error {
	data, ok := t.Float32s()
	if !ok {
		return errors.Errorf("tensor %s: normalized image needs float storage, got %s", t.name, t.DataType())
	}
	if t.Rank() != 4 || t.Dim(1) != 3 {
		return errors.Errorf("tensor %s: expected [N,3,H,W] input, got %v", t.name, t.Shape())
	}
	if slot < 0 || slot >= t.Dim(0) {
		return errors.Errorf("tensor %s: slot %d out of range [0,%d)", t.name, slot, t.Dim(0))
	}
	if img.Empty() {
		return errors.Errorf("tensor %s: empty image for slot %d", t.name, slot)
	}
	for c, s := range std {
		if s == 0 {
			return errors.Errorf("tensor %s: std[%d] is zero", t.name, c)
		}
	}

	src := img
	var scratch []gocv.Mat
	defer func() {
		for _, m := range scratch {
			_ = m.Close()
		}
	}()

	switch src.Channels() {
	case 3:
	case 1, 4:
		converted := gocv.NewMat()
		scratch = append(scratch, converted)
		code := gocv.ColorGrayToBGR
		if src.Channels() == 4 {
			code = gocv.ColorBGRAToBGR
		}
		gocv.CvtColor(src, &converted, code)
		src = converted
	default:
		return errors.Errorf("tensor %s: unsupported channel count %d", t.name, src.Channels())
	}
	if src.Type() != gocv.MatTypeCV8UC3 {
		return errors.Errorf("tensor %s: unsupported image type %v", t.name, src.Type())
	}

	size := t.InputSize()
	if src.Cols() != size.X || src.Rows() != size.Y {
		resized := gocv.NewMat()
		scratch = append(scratch, resized)
		gocv.Resize(src, &resized, size, 0, 0, gocv.InterpolationLinear)
		src = resized
	}
	if !src.IsContinuous() {
		cloned := src.Clone()
		scratch = append(scratch, cloned)
		src = cloned
	}

	pix, err := src.DataPtrUint8()
	if err != nil {
		return errors.Wrapf(err, "tensor %s: read image pixels", t.name)
	}

	w, h := size.X, size.Y
	plane := w * h
	base := slot * 3 * plane
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := (y*w + x) * 3
			for c := 0; c < 3; c++ {
				data[base+c*plane+y*w+x] = (float32(pix[p+c]) - mean[c]) / std[c]
			}
		}
	}
	return nil
}
