package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// CPUOnly, CPUAndNeuralEngine, CPUAndGPU or ALL.
	MLComputeUnits string `json:"ml_compute_units" yaml:"ml_compute_units"`
	// Only hand nodes with static input shapes to CoreML.
	RequireStaticInputShapes bool `json:"require_static_input_shapes" yaml:"require_static_input_shapes"`
}

// CoreML provider flags from coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly       uint32 = 0x001
	coreMLFlagOnlyStaticShapes uint32 = 0x008
	coreMLFlagUseCPUAndGPU     uint32 = 0x020
)

func (o CoreMLOptions) flags() uint32 {
	var flags uint32
	switch o.MLComputeUnits {
	case "CPUOnly":
		flags |= coreMLFlagUseCPUOnly
	case "CPUAndGPU":
		flags |= coreMLFlagUseCPUAndGPU
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLFlagOnlyStaticShapes
	}
	return flags
}

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// CPU, GPU or NPU.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// FP32, FP16 or ACCURACY; empty keeps the hardware default.
	Precision string `json:"precision" yaml:"precision"`
	// 0 keeps the default of 8.
	NumOfThreads int `json:"num_of_threads" yaml:"num_of_threads"`
	// Rewrite dynamic shapes to static at runtime.
	DisableDynamicShapes bool `json:"disable_dynamic_shapes" yaml:"disable_dynamic_shapes"`
}

func (o OpenVINOOptions) settings() map[string]string {
	settings := map[string]string{
		"device_type":            o.DeviceType,
		"disable_dynamic_shapes": strconv.FormatBool(o.DisableDynamicShapes),
	}
	if o.Precision != "" {
		settings["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		settings["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	return settings
}

func appendCoreML(options *ort.SessionOptions, o CoreMLOptions) error {
	if err := options.AppendExecutionProviderCoreML(o.flags()); err != nil {
		return errors.Wrap(err, "error enabling CoreML")
	}
	return nil
}

func appendOpenVINO(options *ort.SessionOptions, o OpenVINOOptions) error {
	if err := options.AppendExecutionProviderOpenVINO(o.settings()); err != nil {
		return errors.Wrap(err, "error enabling OpenVINO")
	}
	return nil
}
