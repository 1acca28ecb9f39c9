// Package detection decodes raw detector-head outputs into per-image results.
//
// Every supported head convention decodes into the same canonical buffer,
// [batch, MaxBoxes*BoxStride] float32 with rows of (left, top, right, bottom,
// score, label), and a per-image count. Results are materialized from there.
package detection

import (
	"fmt"

	"github.com/nvr-ai/go-detect/inference"
)

// OutputSpec is the expected layout of one output tensor.
type OutputSpec struct {
	DataType inference.DataType
	// Shape lists every dimension after the batch dimension.
	Shape []int
}

// Rank is the full rank including the batch dimension.
func (o OutputSpec) Rank() int {
	return len(o.Shape) + 1
}

// Schema is the output contract of one detector-head plugin.
type Schema struct {
	Name    string
	Outputs []OutputSpec
}

// SchemaMismatchError describes the first property of an output list that differs from a schema.
type SchemaMismatchError struct {
	Schema string
	// Index is the failing output position, or -1 when the output count differs.
	Index    int
	Property string
	Expected string
	Actual   string
}

func (e *SchemaMismatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: output %s mismatch: expected %s, got %s",
			e.Schema, e.Property, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: output %d %s mismatch: expected %s, got %s",
		e.Schema, e.Index, e.Property, e.Expected, e.Actual)
}

// Validate checks outputs against the schema.
//
// Checks run in order and stop at the first failure: output count, then per
// output the element type, the rank and every non-batch dimension. The batch
// dimension is never checked.
//
// Arguments:
//   - outputs: The output tensors of a loaded model, in index order.
//
// Returns:
//   - error: nil on an exact match, otherwise a *SchemaMismatchError.
func (s Schema) Validate(outputs []*inference.Tensor) error {
	if len(outputs) != len(s.Outputs) {
		return &SchemaMismatchError{
			Schema:   s.Name,
			Index:    -1,
			Property: "count",
			Expected: fmt.Sprint(len(s.Outputs)),
			Actual:   fmt.Sprint(len(outputs)),
		}
	}

	for i, exp := range s.Outputs {
		out := outputs[i]
		if out == nil {
			return &SchemaMismatchError{Schema: s.Name, Index: i, Property: "presence", Expected: "tensor", Actual: "nil"}
		}
		if out.DataType() != exp.DataType {
			return &SchemaMismatchError{
				Schema:   s.Name,
				Index:    i,
				Property: "dtype",
				Expected: exp.DataType.String(),
				Actual:   out.DataType().String(),
			}
		}
		if out.Rank() != exp.Rank() {
			return &SchemaMismatchError{
				Schema:   s.Name,
				Index:    i,
				Property: "rank",
				Expected: fmt.Sprint(exp.Rank()),
				Actual:   fmt.Sprint(out.Rank()),
			}
		}
		for d, want := range exp.Shape {
			if got := out.Dim(d + 1); got != want {
				return &SchemaMismatchError{
					Schema:   s.Name,
					Index:    i,
					Property: fmt.Sprintf("shape[%d]", d+1),
					Expected: fmt.Sprint(want),
					Actual:   fmt.Sprint(got),
				}
			}
		}
	}
	return nil
}

// String renders the schema, e.g. "mmdeploy[float[b,100,5] int32[b,100]]".
func (s Schema) String() string {
	out := s.Name + "["
	for i, exp := range s.Outputs {
		if i > 0 {
			out += " "
		}
		out += exp.DataType.String() + "[b"
		for _, d := range exp.Shape {
			out += fmt.Sprintf(",%d", d)
		}
		out += "]"
	}
	return out + "]"
}
