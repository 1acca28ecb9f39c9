package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// TensorRTOptions contains arguments for the TensorRT provider.
// See: https://onnxruntime.ai/docs/execution-providers/TensorRT-ExecutionProvider.html
type TensorRTOptions struct {
	DeviceID int `json:"device_id" yaml:"device_id"`
	// FP16 enables half precision kernels.
	FP16 bool `json:"fp16" yaml:"fp16"`
	// EngineCachePath stores built engines so later loads skip the build.
	EngineCachePath string `json:"engine_cache_path" yaml:"engine_cache_path"`
	// MaxWorkspaceSize in bytes; 0 keeps the runtime default.
	MaxWorkspaceSize int64 `json:"max_workspace_size" yaml:"max_workspace_size"`
}

func (o TensorRTOptions) settings() map[string]string {
	settings := map[string]string{
		"device_id":               strconv.Itoa(o.DeviceID),
		"trt_fp16_enable":         boolFlag(o.FP16),
		"trt_engine_cache_enable": boolFlag(o.EngineCachePath != ""),
	}
	if o.EngineCachePath != "" {
		settings["trt_engine_cache_path"] = o.EngineCachePath
	}
	if o.MaxWorkspaceSize > 0 {
		settings["trt_max_workspace_size"] = strconv.FormatInt(o.MaxWorkspaceSize, 10)
	}
	return settings
}

// appendTensorRT adds TensorRT followed by CUDA, so nodes TensorRT rejects still run on the GPU.
func appendTensorRT(options *ort.SessionOptions, o TensorRTOptions) error {
	trt, err := ort.NewTensorRTProviderOptions()
	if err != nil {
		return errors.Wrap(err, "error creating TensorRT provider options")
	}
	defer trt.Destroy()

	if err := trt.Update(o.settings()); err != nil {
		return errors.Wrap(err, "error updating TensorRT provider options")
	}
	if err := options.AppendExecutionProviderTensorRT(trt); err != nil {
		return errors.Wrap(err, "error enabling TensorRT")
	}
	return appendCUDA(options, CUDAOptions{DeviceID: o.DeviceID})
}
