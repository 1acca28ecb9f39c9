package inference

import "context"

// Infer is a loaded model ready to run forward passes over bound IO tensors.
//
// Input and output tensors are allocated once at load and reused by every
// Forward call, so callers write inputs in place and read outputs in place.
type Infer interface {
	// Input returns the i-th input tensor, or nil when out of range.
	Input(i int) *Tensor
	// Output returns the i-th output tensor, or nil when out of range.
	Output(i int) *Tensor
	NumInput() int
	NumOutput() int
	// MaxBatchSize is the largest batch the bound tensors can hold.
	MaxBatchSize() int
	// Forward runs the model and returns once the outputs are complete.
	Forward(ctx context.Context) error
	// Print logs the model's IO layout.
	Print()
	Close() error
}

// Loader opens a model file.
type Loader func(path string) (Infer, error)

// Outputs collects every output tensor of an Infer in index order.
func Outputs(infer Infer) []*Tensor {
	outputs := make([]*Tensor, 0, infer.NumOutput())
	for i := 0; i < infer.NumOutput(); i++ {
		outputs = append(outputs, infer.Output(i))
	}
	return outputs
}
