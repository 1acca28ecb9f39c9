// Package detector - Runs a detection model end to end: preprocess, forward, decode.
package detector

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-detect/detection"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var (
	// ErrModelLoad is returned when the model cannot be opened or bound.
	ErrModelLoad = errors.New("failed to load model")
	// ErrNilParser is returned when no output parser is configured.
	ErrNilParser = errors.New("no output parser configured")
	// ErrBatchOverflow is returned when more images are submitted than the model batch holds.
	ErrBatchOverflow = errors.New("batch exceeds model capacity")
)

// Engine couples a loaded model with the parser for its detection head.
//
// Run and RunBatch are serialized; the model IO tensors and the decode buffer
// are shared between calls.
type Engine struct {
	id      uuid.UUID
	mu      sync.Mutex
	infer   inference.Infer
	input   *inference.Tensor
	outputs []*inference.Tensor
	decoder *detection.Decoder
	metrics *metrics.Collector
	log     *zap.Logger
}

// Option configures an Engine at construction.
type Option func(*settings)

type settings struct {
	loader  inference.Loader
	device  inference.Device
	metrics *metrics.Collector
}

// WithLoader replaces the ONNX Runtime loader.
func WithLoader(l inference.Loader) Option {
	return func(s *settings) { s.loader = l }
}

// WithDevice selects where outputs are decoded.
func WithDevice(d inference.Device) Option {
	return func(s *settings) { s.device = d }
}

// WithMetrics records engine activity on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *settings) { s.metrics = c }
}

// New loads modelPath and binds parser to its outputs.
//
// A model whose outputs do not match the parser schema is still accepted; the
// mismatch is logged as a warning.
//
// Arguments:
//   - modelPath: The model file.
//   - parser: The decoder for the model's detection head.
//   - opts: Loader, device and metrics overrides.
//
// Returns:
//   - *Engine: The engine, ready to run.
//   - error: ErrNilParser or ErrModelLoad.
//
// @example
// engine, err := detector.New("model.onnx", detection.MMDeployParser{})
//
//	if err != nil {
//		return err
//	}
//
// defer engine.Close()
func New(modelPath string, parser detection.Parser, opts ...Option) (*Engine, error) {
	s := settings{device: inference.Host}
	for _, opt := range opts {
		opt(&s)
	}
	if s.loader == nil {
		s.loader = inference.NewONNXLoader(providers.DefaultConfig())
	}

	if parser == nil {
		return nil, ErrNilParser
	}
	if modelPath == "" {
		return nil, errors.Wrap(ErrModelLoad, "empty model path")
	}

	infer, err := s.loader(modelPath)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "%s: %v", modelPath, err)
	}
	if infer == nil {
		return nil, errors.Wrapf(ErrModelLoad, "%s: loader returned no model", modelPath)
	}

	input := infer.Input(0)
	if input == nil {
		_ = infer.Close()
		return nil, errors.Wrapf(ErrModelLoad, "%s: model has no inputs", modelPath)
	}
	if input.Rank() != 4 {
		_ = infer.Close()
		return nil, errors.Wrapf(ErrModelLoad, "%s: input %s is not NCHW", modelPath, input)
	}

	decoder, err := detection.NewDecoder(parser, s.device, max(1, infer.MaxBatchSize()))
	if err != nil {
		_ = infer.Close()
		return nil, err
	}

	id := uuid.New()
	e := &Engine{
		id:      id,
		infer:   infer,
		input:   input,
		outputs: inference.Outputs(infer),
		decoder: decoder,
		metrics: s.metrics,
		log:     logger.Log().With(zap.String("engine", id.String())),
	}

	if err := parser.Schema().Validate(e.outputs); err != nil {
		e.warn(metrics.WarnSchemaMismatch, "decoder may produce incorrect results or crash",
			zap.String("model", modelPath), zap.Error(err))
	}
	e.log.Info("detector ready",
		zap.String("model", modelPath),
		zap.String("plugin", parser.Name()),
		zap.String("device", s.device.String()),
		zap.Int("max_batch", infer.MaxBatchSize()))
	infer.Print()

	return e, nil
}

// ID identifies the engine in logs.
func (e *Engine) ID() string {
	return e.id.String()
}

// ParserName is the name of the bound parser.
func (e *Engine) ParserName() string {
	return e.decoder.Parser().Name()
}

// MaxBatchSize is the most images RunBatch accepts.
func (e *Engine) MaxBatchSize() int {
	return e.infer.MaxBatchSize()
}

// InputSize is the model input width and height.
func (e *Engine) InputSize() image.Point {
	return e.input.InputSize()
}

// Run detects objects in one image.
//
// Models with a batch larger than one still run, but every call logs a result
// count warning. Use RunBatch for those.
//
// Arguments:
//   - ctx: Checked before the forward pass.
//   - img: A BGR, BGRA or grayscale image of any size.
//   - mean: Per-channel mean subtracted before scaling.
//   - std: Per-channel divisor.
//
// Returns:
//   - *detection.DetResult: The detections, or nil for an empty image.
//   - error: A preprocessing, forward or decode error.
func (e *Engine) Run(ctx context.Context, img gocv.Mat, mean, std [3]float32) (*detection.DetResult, error) {
	if img.Empty() {
		e.warn(metrics.WarnEmptyImage, "empty image, skipping detection")
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.input.SetNormMat(0, img, mean, std); err != nil {
		return nil, errors.Wrap(err, "failed to preprocess image")
	}
	results, err := e.forwardDecode(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 || e.infer.MaxBatchSize() != 1 {
		e.warn(metrics.WarnResultCount, "unexpected result count, check the model batch and input configuration",
			zap.Int("results", len(results)),
			zap.Int("max_batch", e.infer.MaxBatchSize()),
			zap.Stringer("input", e.input.InputSize()))
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// RunBatch detects objects in up to MaxBatchSize images with one forward pass.
//
// Empty images are replaced by black frames so the remaining slots keep their
// positions; their results are normally empty.
//
// Arguments:
//   - ctx: Checked before the forward pass.
//   - imgs: The images, one per batch slot.
//   - mean: Per-channel mean subtracted before scaling.
//   - std: Per-channel divisor.
//
// Returns:
//   - []*detection.DetResult: One result per image in order.
//   - error: ErrBatchOverflow, or a preprocessing, forward or decode error.
func (e *Engine) RunBatch(ctx context.Context, imgs []gocv.Mat, mean, std [3]float32) ([]*detection.DetResult, error) {
	capacity := e.infer.MaxBatchSize()
	if len(imgs) > capacity {
		return nil, errors.Wrapf(ErrBatchOverflow, "%d images for a batch of %d", len(imgs), capacity)
	}
	if len(imgs) == 0 {
		return nil, nil
	}
	if len(imgs) < capacity {
		e.warn(metrics.WarnBatchUnderfill, "batch is not full, unused slots still run",
			zap.Int("images", len(imgs)), zap.Int("max_batch", capacity))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i, img := range imgs {
		if err := e.setSlot(i, img, mean, std); err != nil {
			return nil, err
		}
	}

	results, err := e.forwardDecode(ctx, len(imgs))
	if err != nil {
		return nil, err
	}
	if len(results) != len(imgs) {
		e.warn(metrics.WarnResultCount, "unexpected result count, check the model batch and input configuration",
			zap.Int("results", len(results)),
			zap.Int("images", len(imgs)),
			zap.Int("max_batch", capacity),
			zap.Stringer("input", e.input.InputSize()))
	}
	return results, nil
}

// Close releases the model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.infer.Close()
}

func (e *Engine) setSlot(slot int, img gocv.Mat, mean, std [3]float32) error {
	if img.Empty() {
		e.warn(metrics.WarnEmptyImage, "empty image in batch, substituting a black frame", zap.Int("slot", slot))
		size := e.input.InputSize()
		blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC3)
		defer blank.Close()
		img = blank
	}
	if err := e.input.SetNormMat(slot, img, mean, std); err != nil {
		return errors.Wrapf(err, "failed to preprocess image %d", slot)
	}
	return nil
}

func (e *Engine) forwardDecode(ctx context.Context, rows int) ([]*detection.DetResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := e.infer.Forward(ctx); err != nil {
		return nil, errors.Wrap(err, "forward pass failed")
	}
	elapsed := time.Since(start)
	e.log.Debug("forward", zap.Int("images", rows), zap.Duration("elapsed", elapsed))

	results, err := e.decoder.Decode(e.outputs, rows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode outputs")
	}

	if e.metrics != nil {
		name := e.ParserName()
		e.metrics.ObserveForward(name, elapsed.Seconds())
		e.metrics.AddImages(name, rows)
		n := 0
		for _, r := range results {
			n += r.DefectNum()
		}
		e.metrics.AddDetections(name, n)
	}
	return results, nil
}

func (e *Engine) warn(kind, msg string, fields ...zap.Field) {
	e.log.Warn(msg, fields...)
	if e.metrics != nil {
		e.metrics.Warn(e.ParserName(), kind)
	}
}
