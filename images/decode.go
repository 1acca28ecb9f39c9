package images

import (
	"bytes"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DecodeMat decodes an encoded image into a BGR Mat.
//
// JPEG, PNG and BMP go through OpenCV. WebP is decoded in Go and copied into a
// Mat so the result does not depend on the OpenCV build's codec set.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - gocv.Mat: A CV_8UC3 image owned by the caller, or the zero Mat on error.
//   - Image: The format and dimensions; Data aliases the input.
//   - error: An error if the data cannot be decoded.
func DecodeMat(data []byte) (gocv.Mat, Image, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return gocv.Mat{}, Image{}, err
	}

	var mat gocv.Mat
	switch format {
	case FormatWebP:
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return gocv.Mat{}, Image{}, errors.Wrap(err, "failed to decode webp")
		}
		mat, err = gocv.ImageToMatRGB(img)
		if err != nil {
			return gocv.Mat{}, Image{}, errors.Wrap(err, "failed to convert webp")
		}
	default:
		mat, err = gocv.IMDecode(data, gocv.IMReadColor)
		if err != nil {
			return gocv.Mat{}, Image{}, errors.Wrapf(err, "failed to decode %s", format)
		}
	}

	if mat.Empty() {
		_ = mat.Close()
		return gocv.Mat{}, Image{}, errors.Errorf("decoded %s image is empty", format)
	}
	return mat, Image{Format: format, Data: data, Width: mat.Cols(), Height: mat.Rows()}, nil
}
