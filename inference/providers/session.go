package providers

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// InitializeEnvironment loads the onnxruntime shared library once per process.
//
// Arguments:
//   - cfg: The configuration whose LibraryPath overrides the platform default.
//
// Returns:
//   - error: An error if the library is missing or the environment cannot start.
func InitializeEnvironment(cfg Config) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// NewSessionOptions builds session options for the configured backend.
//
// Threading and graph optimization are applied first, then the execution
// provider is appended. The caller owns the returned options and must Destroy them.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: Options ready for a new session.
//   - error: An error if any option is rejected by the runtime.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := configure(options, cfg); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func configure(options *ort.SessionOptions, cfg Config) error {
	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		return errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		return errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(graphOptimizationLevel(cfg.GraphOptimization)); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}

	switch cfg.Backend {
	case CUDABackend:
		return appendCUDA(options, cfg.CUDA)
	case TensorRTBackend:
		return appendTensorRT(options, cfg.TensorRT)
	case CoreMLBackend:
		return appendCoreML(options, cfg.CoreML)
	case OpenVINOBackend:
		return appendOpenVINO(options, cfg.OpenVINO)
	}
	return nil
}

func graphOptimizationLevel(g GraphOptimization) ort.GraphOptimizationLevel {
	switch g {
	case GraphOptimizationDisabled:
		return ort.GraphOptimizationLevelDisableAll
	case GraphOptimizationBasic:
		return ort.GraphOptimizationLevelEnableBasic
	case GraphOptimizationAll:
		return ort.GraphOptimizationLevelEnableAll
	default:
		return ort.GraphOptimizationLevelEnableExtended
	}
}
