package detector

import (
	"context"
	"image"

	"github.com/nvr-ai/go-detect/detection"
	"github.com/nvr-ai/go-detect/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Runner is the part of Engine a Pipeline drives.
type Runner interface {
	Run(ctx context.Context, img gocv.Mat, mean, std [3]float32) (*detection.DetResult, error)
	RunBatch(ctx context.Context, imgs []gocv.Mat, mean, std [3]float32) ([]*detection.DetResult, error)
	MaxBatchSize() int
	InputSize() image.Point
}

// Pipeline wraps a Runner with the steps callers apply around every model call.
// Images are optionally letterboxed and batched to the model capacity. Boxes are
// mapped back to source coordinates, then filtered by confidence and NMS.
type Pipeline struct {
	Runner Runner
	Mean   [3]float32
	Std    [3]float32
	// Letterbox resizes each image to LetterboxSize keeping its aspect ratio.
	Letterbox bool
	// LetterboxSize defaults to the model input size when zero.
	LetterboxSize       image.Point
	ConfidenceThreshold float32
	NMS                 detection.NMSConfig
}

// Detect returns one result per image, never nil.
//
// Arguments:
//   - ctx: Passed to every model call.
//   - imgs: The images in source resolution.
//
// Returns:
//   - []*detection.DetResult: Results in image order with boxes in source coordinates.
//   - error: The first letterbox or model error.
func (p *Pipeline) Detect(ctx context.Context, imgs []gocv.Mat) ([]*detection.DetResult, error) {
	if p.Runner == nil {
		return nil, errors.New("pipeline has no runner")
	}

	inputs := imgs
	scales := make([]images.ScaleFactor, len(imgs))
	if p.Letterbox {
		boxed, err := p.letterbox(imgs, scales)
		if err != nil {
			return nil, err
		}
		defer func() {
			for _, m := range boxed {
				_ = m.Close()
			}
		}()
		inputs = boxed
	}

	results := make([]*detection.DetResult, 0, len(inputs))
	capacity := max(1, p.Runner.MaxBatchSize())
	for start := 0; start < len(inputs); start += capacity {
		end := min(start+capacity, len(inputs))
		chunk, err := p.run(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		// a model that returns fewer rows than requested has already been logged by the engine
		for len(chunk) < end-start {
			chunk = append(chunk, nil)
		}
		results = append(results, chunk[:end-start]...)
	}

	for i, r := range results {
		if r == nil {
			r = detection.NewDetResult(nil)
		}
		if p.Letterbox && i < len(scales) && scales[i].X > 0 {
			r = r.Scale(scales[i].X, scales[i].Y)
		}
		if p.ConfidenceThreshold > 0 {
			r = r.FilterByConfidence(p.ConfidenceThreshold)
		}
		if p.NMS.IoUThreshold > 0 {
			r = r.NMS(p.NMS)
		}
		results[i] = r
	}
	return results, nil
}

func (p *Pipeline) run(ctx context.Context, chunk []gocv.Mat) ([]*detection.DetResult, error) {
	if len(chunk) == 1 && p.Runner.MaxBatchSize() <= 1 {
		r, err := p.Runner.Run(ctx, chunk[0], p.Mean, p.Std)
		if err != nil {
			return nil, err
		}
		return []*detection.DetResult{r}, nil
	}
	return p.Runner.RunBatch(ctx, chunk, p.Mean, p.Std)
}

func (p *Pipeline) letterbox(imgs []gocv.Mat, scales []images.ScaleFactor) ([]gocv.Mat, error) {
	size := p.LetterboxSize
	if size.X <= 0 || size.Y <= 0 {
		size = p.Runner.InputSize()
	}

	boxed := make([]gocv.Mat, len(imgs))
	for i, img := range imgs {
		if img.Empty() {
			boxed[i] = gocv.NewMat()
			continue
		}
		m, scale, err := images.ResizeKeepAspectRatio(img, size)
		if err != nil {
			for _, b := range boxed[:i] {
				_ = b.Close()
			}
			return nil, errors.Wrapf(err, "image %d", i)
		}
		boxed[i] = m
		scales[i] = scale
	}
	return boxed, nil
}
