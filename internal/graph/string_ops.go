package graph

import (
	"fmt"
	"strings"

	"github.com/born-ml/parcel/internal/tensor"
)

// registerStringOps adds string operators to the registry.
func (r *Registry) registerStringOps() {
	r.Register(OpStringJoin, handleStringJoin)
}

// handleStringJoin joins string tensors element-wise with the separator
// attribute, broadcasting inputs against each other.
func handleStringJoin(_ *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("string_join requires at least 1 input")
	}

	shape := tensor.Shape{}
	for i, in := range inputs {
		if in.DType() != tensor.String {
			return nil, fmt.Errorf("%w: string_join input %d is %s", ErrTypeMismatch, i, in.DType())
		}
		var err error
		if shape, _, err = tensor.BroadcastShapes(shape, in.Shape()); err != nil {
			return nil, fmt.Errorf("string_join: %w", err)
		}
	}

	sep := node.Attrs[AttrSeparator]
	vals := make([][]string, len(inputs))
	index := make([]tensor.Broadcaster, len(inputs))
	for j, in := range inputs {
		vals[j] = in.Strings()
		index[j] = tensor.NewBroadcaster(shape, in.Shape())
	}

	out := make([]string, shape.NumElements())
	parts := make([]string, len(inputs))
	for i := range out {
		for j := range inputs {
			parts[j] = vals[j][index[j].Index(i)]
		}
		out[i] = strings.Join(parts, sep)
	}

	t, err := tensor.FromStrings(out, shape...)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{t}, nil
}
