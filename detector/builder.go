package detector

import (
	"github.com/nvr-ai/go-detect/detection"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/metrics"
)

// Builder assembles an Engine step by step.
//
// @example
// engine := detector.NewBuilder().
//
//	WithModel("model.onnx").
//	WithParser(detection.AmirstanParser{}).
//	MustBuild()
type Builder struct {
	modelPath string
	parser    detection.Parser
	opts      []Option
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithModel(path string) *Builder {
	b.modelPath = path
	return b
}

func (b *Builder) WithParser(p detection.Parser) *Builder {
	b.parser = p
	return b
}

func (b *Builder) WithLoader(l inference.Loader) *Builder {
	b.opts = append(b.opts, WithLoader(l))
	return b
}

func (b *Builder) WithDevice(d inference.Device) *Builder {
	b.opts = append(b.opts, WithDevice(d))
	return b
}

func (b *Builder) WithMetrics(c *metrics.Collector) *Builder {
	b.opts = append(b.opts, WithMetrics(c))
	return b
}

// Build constructs the engine.
func (b *Builder) Build() (*Engine, error) {
	return New(b.modelPath, b.parser, b.opts...)
}

// MustBuild constructs the engine and panics on failure.
func (b *Builder) MustBuild() *Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}
