// Package inference - Tensors and the execution engine capability consumed by the detector.
package inference

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DataType is the element type of a Tensor.
type DataType int

const (
	// Unknown is any element type the decoder does not handle.
	Unknown DataType = iota
	// Float is a 32-bit floating-point element.
	Float
	// Int32 is a 32-bit signed integer element.
	Int32
	// Int64 is a 64-bit signed integer element.
	Int64
)

func (d DataType) String() string {
	switch d {
	case Float:
		return "float"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// Device identifies where a tensor's storage lives.
type Device int

const (
	// Host is CPU-addressable memory.
	Host Device = iota
	// GPU is device memory. Indexed access requires ToHost first.
	GPU
)

func (d Device) String() string {
	if d == GPU {
		return "gpu"
	}
	return "cpu"
}

// Tensor is an n-dimensional buffer backed by a gorgonia dense tensor.
//
// The backing slice can be shared with a native runtime tensor, so writes
// through SetFloat32At or SetNormMat are visible to the runtime without a copy.
type Tensor struct {
	name   string
	dense  *tensor.Dense
	data   any
	device Device
}

// NewTensor allocates a zeroed tensor.
//
// Arguments:
//   - name: A diagnostic name, usually the model's node name.
//   - dt: The element type. Only Float, Int32 and Int64 are supported.
//   - shape: The dimensions. Every dimension must be positive.
//
// Returns:
//   - *Tensor: The allocated tensor.
//   - error: An error if the type or shape is invalid.
//
// @example
// t, err := NewTensor("boxes", Float, 1, 100, 4)
func NewTensor(name string, dt DataType, shape ...int) (*Tensor, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %s", name)
	}

	var data any
	switch dt {
	case Float:
		data = make([]float32, n)
	case Int32:
		data = make([]int32, n)
	case Int64:
		data = make([]int64, n)
	default:
		return nil, errors.Errorf("tensor %s: unsupported data type %s", name, dt)
	}
	return FromBacking(name, data, shape...)
}

// FromBacking wraps an existing slice without copying it.
//
// Arguments:
//   - name: A diagnostic name.
//   - data: A []float32, []int32 or []int64 with at least volume(shape) elements.
//   - shape: The dimensions.
//
// Returns:
//   - *Tensor: A tensor that reads and writes data in place.
//   - error: An error if the slice type is unsupported or too short.
func FromBacking(name string, data any, shape ...int) (*Tensor, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %s", name)
	}

	var backing any
	switch d := data.(type) {
	case []float32:
		if len(d) < n {
			return nil, errors.Errorf("tensor %s: backing has %d elements, shape %v needs %d", name, len(d), shape, n)
		}
		backing = d[:n]
	case []int32:
		if len(d) < n {
			return nil, errors.Errorf("tensor %s: backing has %d elements, shape %v needs %d", name, len(d), shape, n)
		}
		backing = d[:n]
	case []int64:
		if len(d) < n {
			return nil, errors.Errorf("tensor %s: backing has %d elements, shape %v needs %d", name, len(d), shape, n)
		}
		backing = d[:n]
	default:
		return nil, errors.Errorf("tensor %s: unsupported backing %T", name, data)
	}

	return &Tensor{
		name:  name,
		dense: tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing)),
		data:  backing,
	}, nil
}

// Name returns the diagnostic name.
func (t *Tensor) Name() string {
	return t.name
}

// Shape returns a copy of the dimensions.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.dense.Shape()...)
}

// Dim returns the size of dimension i, or 0 when i is out of range.
func (t *Tensor) Dim(i int) int {
	shape := t.dense.Shape()
	if i < 0 || i >= len(shape) {
		return 0
	}
	return shape[i]
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return t.dense.Dims()
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	return t.dense.Size()
}

// DataType returns the element type.
func (t *Tensor) DataType() DataType {
	switch t.dense.Dtype() {
	case tensor.Float32:
		return Float
	case tensor.Int32:
		return Int32
	case tensor.Int64:
		return Int64
	default:
		return Unknown
	}
}

// Device returns where the storage lives.
func (t *Tensor) Device() Device {
	return t.device
}

// SetDevice tags the storage location. Runtimes that bind device memory use it.
func (t *Tensor) SetDevice(d Device) *Tensor {
	t.device = d
	return t
}

// ToHost makes the tensor addressable from the CPU and returns it.
//
// Storage is always mirrored in host memory here, so this only updates the tag.
func (t *Tensor) ToHost() *Tensor {
	t.device = Host
	return t
}

// Resize changes the shape, keeping the backing storage when its capacity allows.
//
// A resize that needs more elements than the current capacity reallocates, which
// detaches the tensor from any runtime that shared the old storage.
//
// Arguments:
//   - dims: The new dimensions.
//
// Returns:
//   - *Tensor: The receiver.
//   - error: An error if a dimension is not positive.
func (t *Tensor) Resize(dims ...int) (*Tensor, error) {
	n, err := volume(dims)
	if err != nil {
		return t, errors.Wrapf(err, "tensor %s: resize", t.name)
	}
	if n == t.dense.Size() {
		if err := t.dense.Reshape(dims...); err != nil {
			return t, errors.Wrapf(err, "tensor %s: reshape to %v", t.name, dims)
		}
		return t, nil
	}

	switch d := t.data.(type) {
	case []float32:
		if cap(d) >= n {
			t.data = d[:n]
		} else {
			t.data = make([]float32, n)
		}
	case []int32:
		if cap(d) >= n {
			t.data = d[:n]
		} else {
			t.data = make([]int32, n)
		}
	case []int64:
		if cap(d) >= n {
			t.data = d[:n]
		} else {
			t.data = make([]int64, n)
		}
	}
	t.dense = tensor.New(tensor.WithShape(dims...), tensor.WithBacking(t.data))
	return t, nil
}

// ResizeDim changes one dimension and keeps the others.
func (t *Tensor) ResizeDim(dim, size int) (*Tensor, error) {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		return t, errors.Errorf("tensor %s: dimension %d out of range for rank %d", t.name, dim, len(shape))
	}
	shape[dim] = size
	return t.Resize(shape...)
}

// Zero clears every element.
func (t *Tensor) Zero() {
	t.dense.Zero()
}

// Float32At reads one element as float32, converting integer types.
//
// Arguments:
//   - coords: One index per dimension.
//
// Returns:
//   - float32: The element.
//   - error: An error if the coordinates are out of range.
func (t *Tensor) Float32At(coords ...int) (float32, error) {
	v, err := t.at(coords)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float32:
		return x, nil
	case int32:
		return float32(x), nil
	case int64:
		return float32(x), nil
	default:
		return 0, errors.Errorf("tensor %s: unsupported element %T", t.name, v)
	}
}

// Int32At reads one element as int32, truncating floats.
func (t *Tensor) Int32At(coords ...int) (int32, error) {
	v, err := t.at(coords)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int32:
		return x, nil
	case int64:
		return int32(x), nil
	case float32:
		return int32(x), nil
	default:
		return 0, errors.Errorf("tensor %s: unsupported element %T", t.name, v)
	}
}

// SetFloat32At writes one element, converting to the tensor's element type.
func (t *Tensor) SetFloat32At(v float32, coords ...int) error {
	var value any
	switch t.DataType() {
	case Float:
		value = v
	case Int32:
		value = int32(v)
	case Int64:
		value = int64(v)
	default:
		return errors.Errorf("tensor %s: unsupported data type", t.name)
	}
	if err := t.dense.SetAt(value, coords...); err != nil {
		return errors.Wrapf(err, "tensor %s: write at %v", t.name, coords)
	}
	return nil
}

// Float32s returns the host storage of a Float tensor.
func (t *Tensor) Float32s() ([]float32, bool) {
	d, ok := t.data.([]float32)
	return d, ok
}

// Int32s returns the host storage of an Int32 tensor.
func (t *Tensor) Int32s() ([]int32, bool) {
	d, ok := t.data.([]int32)
	return d, ok
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%s %s%v@%s", t.name, t.DataType(), t.dense.Shape(), t.device)
}

func (t *Tensor) at(coords []int) (any, error) {
	if t.device != Host {
		return nil, errors.Errorf("tensor %s: indexed access on %s storage", t.name, t.device)
	}
	v, err := t.dense.At(coords...)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %s: read at %v", t.name, coords)
	}
	return v, nil
}

func volume(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, errors.New("empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, errors.Errorf("non-positive dimension in shape %v", shape)
		}
		n *= d
	}
	return n, nil
}
