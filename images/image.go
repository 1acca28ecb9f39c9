// Package images - Image decoding and geometry helpers for detection inputs.
package images

import (
	"bytes"

	"github.com/pkg/errors"
)

// ErrUnsupportedFormat is returned for data that is not a known image encoding.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Image represents an encoded image with its format and dimensions.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"-" yaml:"-"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatBMP is the Windows bitmap format.
	FormatBMP ImageFormat = "bmp"
)

var (
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	magicBMP  = []byte("BM")
	magicRIFF = []byte("RIFF")
	magicWEBP = []byte("WEBP")
)

// DetectFormat identifies an encoding by its leading bytes.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - ImageFormat: The detected format.
//   - error: ErrUnsupportedFormat when no signature matches.
func DetectFormat(data []byte) (ImageFormat, error) {
	switch {
	case bytes.HasPrefix(data, magicJPEG):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, magicPNG):
		return FormatPNG, nil
	case len(data) >= 12 && bytes.Equal(data[:4], magicRIFF) && bytes.Equal(data[8:12], magicWEBP):
		return FormatWebP, nil
	case bytes.HasPrefix(data, magicBMP):
		return FormatBMP, nil
	default:
		return "", ErrUnsupportedFormat
	}
}
