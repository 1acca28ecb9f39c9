package detector

import (
	"image"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference"
)

// NewFromConfig builds an engine for cfg.Model with the ONNX Runtime loader for cfg.Provider.
// opts are applied after the configured ones and may override them.
func NewFromConfig(cfg config.Config, opts ...Option) (*Engine, error) {
	parser, err := cfg.Parser()
	if err != nil {
		return nil, err
	}
	device, err := cfg.Device()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLoader(inference.NewONNXLoader(cfg.Provider)),
		WithDevice(device),
	}
	return New(cfg.Model.Path, parser, append(base, opts...)...)
}

// NewPipeline applies the preprocess and decode sections of cfg to r.
func NewPipeline(r Runner, cfg config.Config) *Pipeline {
	lb := cfg.Preprocess.Letterbox
	return &Pipeline{
		Runner:              r,
		Mean:                cfg.Preprocess.Mean,
		Std:                 cfg.Preprocess.Std,
		Letterbox:           lb.Enabled,
		LetterboxSize:       image.Pt(lb.Width, lb.Height),
		ConfidenceThreshold: cfg.Decode.ConfidenceThreshold,
		NMS:                 cfg.Decode.NMS,
	}
}
