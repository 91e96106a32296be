package spec

import (
	"fmt"

	"github.com/born-ml/parcel/internal/tensor"
)

// List names used in errors.
const (
	InputList  = "input_spec"
	OutputList = "output_spec"
)

// ValidateList checks that every entry has a name and a recognized dtype,
// that names are unique, and that declared dimensions are either AnyDim or
// non-negative. list names the list in errors.
func ValidateList(list string, specs []TensorSpec) error {
	seen := make(map[string]int, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return &Error{List: list, Index: i, Reason: "missing name"}
		}
		if prev, dup := seen[s.Name]; dup {
			return &Error{List: list, Index: i, Name: s.Name, Reason: fmt.Sprintf("duplicate name (first declared at index %d)", prev)}
		}
		seen[s.Name] = i

		if !s.DType.Valid() {
			return &Error{List: list, Index: i, Name: s.Name, Reason: "missing or unrecognized dtype"}
		}
		for d, dim := range s.Shape {
			if dim < 0 && dim != AnyDim {
				return &Error{List: list, Index: i, Name: s.Name, Reason: fmt.Sprintf("invalid dimension %d at axis %d", dim, d)}
			}
		}
	}
	return nil
}

// Validate checks both the input and the output spec lists.
func Validate(inputs, outputs []TensorSpec) error {
	if err := ValidateList(InputList, inputs); err != nil {
		return err
	}
	return ValidateList(OutputList, outputs)
}

// Check validates a runtime tensor against its declared spec. The dtype must
// match exactly. With a non-nil declared shape the rank must match, and each
// declared dimension must equal the runtime one unless it is AnyDim.
func Check(s TensorSpec, t *tensor.Tensor) error {
	if t == nil {
		return &MismatchError{Name: s.Name, Expected: s.DType.String(), Actual: "nil", Reason: "tensor is nil"}
	}
	if t.DType() != s.DType {
		return &MismatchError{
			Name:     s.Name,
			Expected: s.DType.String(),
			Actual:   t.DType().String(),
			Reason:   "dtype mismatch",
		}
	}
	if s.Shape == nil {
		return nil
	}

	actual := t.Shape()
	if len(actual) != len(s.Shape) {
		return &MismatchError{
			Name:     s.Name,
			Expected: s.Shape.String(),
			Actual:   actual.String(),
			Reason:   fmt.Sprintf("rank mismatch: expected %d dimensions, got %d", len(s.Shape), len(actual)),
		}
	}
	for i, dim := range s.Shape {
		if dim == AnyDim {
			continue
		}
		if int(dim) != actual[i] {
			return &MismatchError{
				Name:     s.Name,
				Expected: s.Shape.String(),
				Actual:   actual.String(),
				Reason:   fmt.Sprintf("dimension %d mismatch", i),
			}
		}
	}
	return nil
}
