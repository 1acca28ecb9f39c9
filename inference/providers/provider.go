// Package providers - Execution provider selection for ONNX Runtime sessions.
package providers

import (
	"github.com/pkg/errors"
)

// Backend names an ONNX Runtime execution provider.
type Backend string

const (
	// CPUBackend runs on the default CPU provider.
	CPUBackend Backend = "cpu"
	// CUDABackend uses NVIDIA CUDA.
	CUDABackend Backend = "cuda"
	// TensorRTBackend uses NVIDIA TensorRT with CUDA fallback.
	TensorRTBackend Backend = "tensorrt"
	// CoreMLBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLBackend Backend = "coreml"
	// OpenVINOBackend uses Intel OpenVINO.
	OpenVINOBackend Backend = "openvino"
)

// GraphOptimization mirrors the ONNX Runtime graph optimization levels.
type GraphOptimization string

const (
	GraphOptimizationDisabled GraphOptimization = "disabled"
	GraphOptimizationBasic    GraphOptimization = "basic"
	GraphOptimizationExtended GraphOptimization = "extended"
	GraphOptimizationAll      GraphOptimization = "all"
)

// Config selects the execution provider and session tuning for a model.
type Config struct {
	// Backend specifies the execution provider.
	Backend Backend `json:"backend" yaml:"backend"`
	// LibraryPath overrides the platform default onnxruntime shared library.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// MaxBatchSize bounds the batch dimension of models that declare it dynamic.
	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size"`
	// IntraOpThreads sets the threads used inside one node; 0 lets the runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads sets the threads used across independent nodes; 0 lets the runtime decide.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// GraphOptimization controls graph rewrites at load.
	GraphOptimization GraphOptimization `json:"graph_optimization" yaml:"graph_optimization"`

	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`
	TensorRT TensorRTOptions `json:"tensorrt" yaml:"tensorrt"`
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration for single-image models.
//
// Returns:
//   - Config: CPU backend, batch 1, extended graph optimization.
//
// @example
// cfg := DefaultConfig()
// cfg.Backend = CUDABackend
func DefaultConfig() Config {
	return Config{
		Backend:           CPUBackend,
		LibraryPath:       "",
		MaxBatchSize:      1,
		GraphOptimization: GraphOptimizationExtended,
		TensorRT: TensorRTOptions{
			FP16: false,
		},
		CoreML: CoreMLOptions{
			MLComputeUnits: "ALL",
		},
		OpenVINO: OpenVINOOptions{
			DeviceType: "CPU",
		},
	}
}

// Validate checks the configuration for values the runtime would reject.
func (c Config) Validate() error {
	switch c.Backend {
	case CPUBackend, CUDABackend, TensorRTBackend, CoreMLBackend, OpenVINOBackend:
	case "":
		return errors.New("backend is required")
	default:
		return errors.Errorf("unsupported backend %q", c.Backend)
	}

	switch c.GraphOptimization {
	case "", GraphOptimizationDisabled, GraphOptimizationBasic, GraphOptimizationExtended, GraphOptimizationAll:
	default:
		return errors.Errorf("unsupported graph optimization %q", c.GraphOptimization)
	}

	if c.MaxBatchSize < 1 {
		return errors.Errorf("max_batch_size must be at least 1, got %d", c.MaxBatchSize)
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.Errorf("thread counts must not be negative, got intra=%d inter=%d",
			c.IntraOpThreads, c.InterOpThreads)
	}
	return nil
}
