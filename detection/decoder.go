package detection

import (
	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Decoder runs a parser over model outputs and materializes the results.
//
// A Decoder owns its canonical buffer and is not safe for concurrent use.
type Decoder struct {
	parser Parser
	device inference.Device
	buffer *Buffer
}

// NewDecoder creates a decoder for parser.
//
// Arguments:
//   - parser: The head convention to decode.
//   - device: Host decodes on the CPU. GPU uses the parser's DeviceParser when it
//     has one and otherwise yields empty results.
//   - batch: The initial buffer capacity in rows.
//
// Returns:
//   - *Decoder: The decoder.
//   - error: An error if parser is nil.
func NewDecoder(parser Parser, device inference.Device, batch int) (*Decoder, error) {
	if parser == nil {
		return nil, errors.New("decoder needs a parser")
	}
	buffer, err := NewBuffer(batch)
	if err != nil {
		return nil, err
	}
	return &Decoder{parser: parser, device: device, buffer: buffer}, nil
}

// Parser returns the bound parser.
func (d *Decoder) Parser() Parser {
	return d.parser
}

// Decode turns the first rows images of outputs into results.
//
// rows is clamped to the batch dimension of the first output, so asking for
// more images than the model produced yields fewer results.
//
// Arguments:
//   - outputs: The model outputs in index order.
//   - rows: The number of images to decode.
//
// Returns:
//   - []*DetResult: One result per decoded image.
//   - error: A parse error or ErrDecodeInconsistency.
func (d *Decoder) Decode(outputs []*inference.Tensor, rows int) ([]*DetResult, error) {
	if len(outputs) == 0 || outputs[0] == nil {
		return nil, errors.Errorf("%s: no outputs to decode", d.parser.Name())
	}
	rows = min(rows, outputs[0].Dim(0))
	if rows <= 0 {
		return nil, nil
	}
	if err := d.buffer.Reset(rows); err != nil {
		return nil, err
	}

	counts, err := d.decode(outputs, rows)
	if err != nil {
		return nil, err
	}
	return Materialize(d.buffer, counts)
}

func (d *Decoder) decode(outputs []*inference.Tensor, rows int) ([]int, error) {
	if d.device == inference.GPU {
		if dp, ok := d.parser.(DeviceParser); ok {
			return dp.DecodeDevice(outputs, rows, d.buffer)
		}
		logger.Log().Debug("no device decode for parser, returning empty results",
			zap.String("parser", d.parser.Name()), zap.Int("rows", rows))
		return make([]int, rows), nil
	}

	counts, err := d.parser.DecodeCounts(outputs, rows)
	if err != nil {
		return nil, err
	}
	if err := d.parser.DecodeBoxes(outputs, counts, d.buffer); err != nil {
		return nil, err
	}
	return counts, nil
}

// Materialize builds one result per buffer row from the per-image counts.
//
// Arguments:
//   - buf: The canonical buffer.
//   - counts: counts[i] is the number of valid boxes in row i.
//
// Returns:
//   - []*DetResult: len(counts) results, each owning copies of its boxes.
//   - error: ErrDecodeInconsistency when counts does not match the buffer.
func Materialize(buf *Buffer, counts []int) ([]*DetResult, error) {
	if len(counts) != buf.Batch() {
		return nil, errors.Wrapf(ErrDecodeInconsistency,
			"%d counts for a buffer of %d rows", len(counts), buf.Batch())
	}

	results := make([]*DetResult, len(counts))
	for i, n := range counts {
		if n < 0 || n > MaxBoxes {
			return nil, errors.Wrapf(ErrDecodeInconsistency,
				"row %d count %d outside [0, %d]", i, n, MaxBoxes)
		}
		boxes := make([]common.BoundingBox, n)
		for j := range boxes {
			v, err := buf.At(i, j)
			if err != nil {
				return nil, err
			}
			boxes[j] = common.NewBoundingBox(v)
		}
		results[i] = NewDetResult(boxes)
	}
	return results, nil
}
