// Package spec defines tensor specifications (name, element type and shape
// constraints) and validates both spec lists and runtime tensors against them.
package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/parcel/internal/tensor"
)

// Dim is one dimension of a declared shape. AnyDim accepts any size.
type Dim int

// AnyDim matches any runtime size at its position. It is encoded as JSON null.
const AnyDim Dim = -1

// MarshalJSON encodes AnyDim as null.
func (d Dim) MarshalJSON() ([]byte, error) {
	if d == AnyDim {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(d))), nil
}

// UnmarshalJSON decodes null as AnyDim. Negative sizes are rejected.
func (d *Dim) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = AnyDim
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid dimension %s: %w", data, err)
	}
	if n < 0 {
		return negativeDim(n)
	}
	*d = Dim(n)
	return nil
}

func negativeDim(n int) error {
	return fmt.Errorf("%w: dimension %d is negative, use null for any size", ErrSpec, n)
}

// Shape is a declared shape. A nil Shape disables shape validation; an empty
// non-nil Shape declares a scalar.
type Shape []Dim

// UnmarshalYAML decodes a sequence of dimensions where null (or ~) entries
// become AnyDim.
func (s *Shape) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: shape must be a sequence", node.Line)
	}
	dims := make(Shape, len(node.Content))
	for i, child := range node.Content {
		if child.ShortTag() == "!!null" {
			dims[i] = AnyDim
			continue
		}
		var n int
		if err := child.Decode(&n); err != nil {
			return fmt.Errorf("line %d: invalid dimension %q: %w", child.Line, child.Value, err)
		}
		if n < 0 {
			return fmt.Errorf("line %d: %w", child.Line, negativeDim(n))
		}
		dims[i] = Dim(n)
	}
	*s = dims
	return nil
}

// MarshalYAML encodes AnyDim entries as null.
func (s Shape) MarshalYAML() (any, error) {
	if s == nil {
		return nil, nil
	}
	dims := make([]any, len(s))
	for i, d := range s {
		if d != AnyDim {
			dims[i] = int(d)
		}
	}
	return dims, nil
}

// Dims builds a Shape from ints, mapping negative values to AnyDim.
//
// Example:
//
//	spec.Dims(-1)    // (None,)
//	spec.Dims(2, -1) // (2, None)
//	spec.Dims()      // scalar
func Dims(dims ...int) Shape {
	s := make(Shape, len(dims))
	for i, d := range dims {
		if d < 0 {
			s[i] = AnyDim
			continue
		}
		s[i] = Dim(d)
	}
	return s
}

// String formats the shape the way numpy prints tuples, with None for AnyDim.
func (s Shape) String() string {
	if s == nil {
		return "None"
	}
	parts := make([]string, len(s))
	for i, d := range s {
		if d == AnyDim {
			parts[i] = "None"
		} else {
			parts[i] = strconv.Itoa(int(d))
		}
	}
	if len(s) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// TensorSpec declares the name, element type and shape of one model input
// or output.
type TensorSpec struct {
	Name  string          `json:"name" yaml:"name"`
	DType tensor.DataType `json:"dtype" yaml:"dtype"`
	Shape Shape           `json:"shape" yaml:"shape"`
}

// Names returns the spec names in declaration order.
func Names(specs []TensorSpec) []string {
	names := make([]string, len(specs))
	for i := range specs {
		names[i] = specs[i].Name
	}
	return names
}

// Find returns the spec with the given name.
func Find(specs []TensorSpec, name string) (TensorSpec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return TensorSpec{}, false
}
