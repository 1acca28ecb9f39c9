package images

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ScaleFactor is the ratio of a resized image to its source along each axis.
// Dividing output coordinates by it maps them back to the source.
type ScaleFactor struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// ResizeKeepAspectRatio fits src inside dst without distortion.
//
// The image is scaled by the smaller of the two axis ratios, anchored at the
// top-left corner, and the remainder is padded with black on the right and
// bottom.
//
// Arguments:
//   - src: The image to resize.
//   - dst: The output width and height.
//
// Returns:
//   - gocv.Mat: A dst sized image owned by the caller, or the zero Mat on error.
//   - ScaleFactor: Resized content size over source size per axis.
//   - error: An error if src is empty or dst is not positive.
//
// @example
// boxed, scale, err := images.ResizeKeepAspectRatio(frame, image.Pt(640, 640))
//
//	if err != nil {
//		return err
//	}
//
// defer boxed.Close()
// result = result.Scale(scale.X, scale.Y)
func ResizeKeepAspectRatio(src gocv.Mat, dst image.Point) (gocv.Mat, ScaleFactor, error) {
	if src.Empty() {
		return gocv.Mat{}, ScaleFactor{}, errors.New("cannot letterbox an empty image")
	}
	if dst.X <= 0 || dst.Y <= 0 {
		return gocv.Mat{}, ScaleFactor{}, errors.Errorf("invalid letterbox size %v", dst)
	}

	cols, rows := float32(src.Cols()), float32(src.Rows())
	ratio := math32.Min(float32(dst.X)/cols, float32(dst.Y)/rows)
	w := min(dst.X, max(1, int(math32.Round(cols*ratio))))
	h := min(dst.Y, max(1, int(math32.Round(rows*ratio))))

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)

	out := gocv.NewMat()
	gocv.CopyMakeBorder(resized, &out, 0, dst.Y-h, 0, dst.X-w, gocv.BorderConstant, color.RGBA{})

	return out, ScaleFactor{X: float32(w) / cols, Y: float32(h) / rows}, nil
}
