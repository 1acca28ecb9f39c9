package inference

import (
	"context"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ONNXInfer runs a model through an ONNX Runtime session with preallocated IO tensors.
type ONNXInfer struct {
	path       string
	session    *ort.AdvancedSession
	inputInfo  []ort.InputOutputInfo
	outputInfo []ort.InputOutputInfo
	ortInputs  []ort.Value
	ortOutputs []ort.Value
	inputs     []*Tensor
	outputs    []*Tensor
	maxBatch   int
}

// NewONNXLoader returns a Loader that opens models with the given provider configuration.
func NewONNXLoader(cfg providers.Config) Loader {
	return func(path string) (Infer, error) {
		return LoadONNX(path, cfg)
	}
}

// LoadONNX opens a model and binds one tensor per model input and output.
//
// Order of operations:
//  1. Environment setup: loads the native library once per process.
//  2. Model inspection: reads names, element types and dimensions of every input and output.
//  3. Tensor allocation: fixes a dynamic batch dimension to cfg.MaxBatchSize and
//     allocates each tensor so the Go view and the runtime share storage.
//  4. Session creation with the provider's session options.
//
// Arguments:
//   - path: The ONNX model file.
//   - cfg: The execution provider configuration.
//
// Returns:
//   - *ONNXInfer: The loaded model.
//   - error: An error if any step fails; partially created resources are released.
func LoadONNX(path string, cfg providers.Config) (*ONNXInfer, error) {
	if path == "" {
		return nil, errors.New("model path is empty")
	}
	if err := providers.InitializeEnvironment(cfg); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading model %s", path)
	}
	if len(inputInfo) == 0 || len(outputInfo) == 0 {
		return nil, errors.Errorf("model %s has %d inputs and %d outputs", path, len(inputInfo), len(outputInfo))
	}

	m := &ONNXInfer{
		path:       path,
		inputInfo:  inputInfo,
		outputInfo: outputInfo,
		maxBatch:   batchSize(inputInfo[0].Dimensions, cfg.MaxBatchSize),
	}

	for _, info := range inputInfo {
		value, t, err := m.allocate(info)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.ortInputs = append(m.ortInputs, value)
		m.inputs = append(m.inputs, t)
	}
	for _, info := range outputInfo {
		value, t, err := m.allocate(info)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.ortOutputs = append(m.ortOutputs, value)
		m.outputs = append(m.outputs, t)
	}

	options, err := providers.NewSessionOptions(cfg)
	if err != nil {
		m.Close()
		return nil, err
	}
	defer options.Destroy()

	m.session, err = ort.NewAdvancedSession(path, names(inputInfo), names(outputInfo),
		m.ortInputs, m.ortOutputs, options)
	if err != nil {
		m.Close()
		return nil, errors.Wrapf(err, "error creating ORT session for %s", path)
	}
	return m, nil
}

// allocate creates the runtime tensor for one model IO and a Tensor over the same storage.
func (m *ONNXInfer) allocate(info ort.InputOutputInfo) (ort.Value, *Tensor, error) {
	shape, err := m.resolveShape(info)
	if err != nil {
		return nil, nil, err
	}
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}

	switch info.DataType {
	case ort.TensorElementDataTypeFloat:
		return bind[float32](info.Name, shape, dims)
	case ort.TensorElementDataTypeInt32:
		return bind[int32](info.Name, shape, dims)
	case ort.TensorElementDataTypeInt64:
		return bind[int64](info.Name, shape, dims)
	default:
		return nil, nil, errors.Errorf("tensor %s: unsupported element type %v", info.Name, info.DataType)
	}
}

func bind[T float32 | int32 | int64](name string, shape ort.Shape, dims []int) (ort.Value, *Tensor, error) {
	value, err := ort.NewEmptyTensor[T](shape)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error creating tensor %s", name)
	}
	t, err := FromBacking(name, value.GetData(), dims...)
	if err != nil {
		value.Destroy()
		return nil, nil, err
	}
	return value, t, nil
}

// resolveShape fixes the batch dimension; any other dynamic dimension is rejected.
func (m *ONNXInfer) resolveShape(info ort.InputOutputInfo) (ort.Shape, error) {
	shape := make(ort.Shape, len(info.Dimensions))
	for i, d := range info.Dimensions {
		switch {
		case d > 0:
			shape[i] = d
		case i == 0:
			shape[i] = int64(m.maxBatch)
		default:
			return nil, errors.Errorf("tensor %s: dynamic dimension %d in %v is not supported",
				info.Name, i, info.Dimensions)
		}
	}
	return shape, nil
}

func (m *ONNXInfer) Input(i int) *Tensor {
	if i < 0 || i >= len(m.inputs) {
		return nil
	}
	return m.inputs[i]
}

func (m *ONNXInfer) Output(i int) *Tensor {
	if i < 0 || i >= len(m.outputs) {
		return nil
	}
	return m.outputs[i]
}

func (m *ONNXInfer) NumInput() int  { return len(m.inputs) }
func (m *ONNXInfer) NumOutput() int { return len(m.outputs) }
func (m *ONNXInfer) MaxBatchSize() int {
	return m.maxBatch
}

// Forward runs the session synchronously.
func (m *ONNXInfer) Forward(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.session == nil {
		return errors.New("session is closed")
	}
	if err := m.session.Run(); err != nil {
		return errors.Wrapf(err, "error running %s", m.path)
	}
	return nil
}

// Print logs every input and output with its bound shape.
func (m *ONNXInfer) Print() {
	log := logger.Log().With(zap.String("model", m.path), zap.Int("max_batch_size", m.maxBatch))
	for i, t := range m.inputs {
		log.Info("model input", zap.Int("index", i), zap.Stringer("tensor", t))
	}
	for i, t := range m.outputs {
		log.Info("model output", zap.Int("index", i), zap.Stringer("tensor", t))
	}
}

// Close releases the session and every bound tensor.
func (m *ONNXInfer) Close() error {
	var err error
	if m.session != nil {
		if destroyErr := m.session.Destroy(); destroyErr != nil {
			err = errors.Wrap(destroyErr, "error destroying ORT session")
		}
		m.session = nil
	}
	for _, v := range m.ortInputs {
		v.Destroy()
	}
	for _, v := range m.ortOutputs {
		v.Destroy()
	}
	m.ortInputs, m.ortOutputs = nil, nil
	m.inputs, m.outputs = nil, nil
	return err
}

func batchSize(dims ort.Shape, configured int) int {
	if len(dims) > 0 && dims[0] > 0 {
		return int(dims[0])
	}
	if configured < 1 {
		return 1
	}
	return configured
}

func names(infos []ort.InputOutputInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}
