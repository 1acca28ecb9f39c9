package detection

import (
	"strings"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/pkg/errors"
)

// Parser decodes the outputs of one detector-head convention into the canonical buffer.
type Parser interface {
	// Name identifies the convention in logs and configuration.
	Name() string
	// Schema is the output contract the model must satisfy.
	Schema() Schema
	// DecodeCounts returns the number of valid boxes for each of the first rows images.
	DecodeCounts(outputs []*inference.Tensor, rows int) ([]int, error)
	// DecodeBoxes writes counts[i] boxes of image i into row i of buf.
	DecodeBoxes(outputs []*inference.Tensor, counts []int, buf *Buffer) error
}

// DeviceParser is implemented by parsers that can decode outputs left in device memory.
type DeviceParser interface {
	Parser
	// DecodeDevice fills buf and returns the per-image counts in one pass.
	DecodeDevice(outputs []*inference.Tensor, rows int, buf *Buffer) ([]int, error)
}

// ParserByName returns the parser for a convention name.
//
// Arguments:
//   - name: amirstan (alias faster_rcnn) or mmdeploy, case insensitive.
//
// Returns:
//   - Parser: A new parser.
//   - error: ErrUnknownParser for any other name.
func ParserByName(name string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case AmirstanName, "faster_rcnn":
		return AmirstanParser{}, nil
	case MMDeployName:
		return MMDeployParser{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownParser, "%q", name)
	}
}

// reader keeps the first error of a run of element reads.
type reader struct {
	err error
}

func (r *reader) f32(t *inference.Tensor, coords ...int) float32 {
	if r.err != nil {
		return 0
	}
	v, err := t.Float32At(coords...)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *reader) i32(t *inference.Tensor, coords ...int) int32 {
	if r.err != nil {
		return 0
	}
	v, err := t.Int32At(coords...)
	if err != nil {
		r.err = err
	}
	return v
}

// hostOutputs checks the output count and pulls every output to host memory.
func hostOutputs(name string, outputs []*inference.Tensor, want int) ([]*inference.Tensor, error) {
	if len(outputs) < want {
		return nil, errors.Errorf("%s: expected %d outputs, got %d", name, want, len(outputs))
	}
	host := make([]*inference.Tensor, want)
	for i := 0; i < want; i++ {
		if outputs[i] == nil {
			return nil, errors.Errorf("%s: output %d is nil", name, i)
		}
		host[i] = outputs[i].ToHost()
	}
	return host, nil
}

// capacity is the number of detection slots a rank>=2 output offers per image.
func capacity(t *inference.Tensor) int {
	return min(MaxBoxes, t.Dim(1))
}
