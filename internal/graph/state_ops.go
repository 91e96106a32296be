package graph

import (
	"fmt"
	"strings"

	"github.com/born-ml/parcel/internal/tensor"
)

// AttrVariables is the Init attribute listing the variables to initialize
// (comma separated). Empty means all variables in the graph.
const AttrVariables = "variables"

// registerStateOps adds variable operators to the registry.
func (r *Registry) registerStateOps() {
	r.Register(OpVariable, handleVariable)
	r.Register(OpAssign, handleAssign)
	r.Register(OpAssignAdd, handleAssignAdd)
	r.Register(OpInit, handleInit)
}

func handleVariable(ctx *Context, node *Node, _ []*tensor.Tensor) ([]*tensor.Tensor, error) {
	v, ok := ctx.vars[node.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUninitialized, node.Name)
	}
	return []*tensor.Tensor{v}, nil
}

// variableInput returns the Variable node referenced by the first input.
func variableInput(ctx *Context, node *Node) (*Node, error) {
	if len(node.Inputs) != 2 {
		return nil, fmt.Errorf("%s requires 2 inputs, got %d", node.Op, len(node.Inputs))
	}
	target, err := ctx.Graph.ResolveOutput(node.Inputs[0])
	if err != nil {
		return nil, err
	}
	if target.Op != OpVariable {
		return nil, fmt.Errorf("%s %q: first input %q is a %s, not a Variable", node.Op, node.Name, target.Name, target.Op)
	}
	return target, nil
}

func handleAssign(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	target, err := variableInput(ctx, node)
	if err != nil {
		return nil, err
	}
	value := inputs[1]
	if target.Value != nil && value.DType() != target.Value.DType() {
		return nil, fmt.Errorf("%w: assign %s to variable %q of %s", ErrTypeMismatch, value.DType(), target.Name, target.Value.DType())
	}
	ctx.vars[target.Name] = value.Clone()
	return []*tensor.Tensor{ctx.vars[target.Name]}, nil
}

func handleAssignAdd(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	target, err := variableInput(ctx, node)
	if err != nil {
		return nil, err
	}
	current, ok := ctx.vars[target.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUninitialized, target.Name)
	}
	sum, err := Binary(OpAdd, current, inputs[1])
	if err != nil {
		return nil, fmt.Errorf("assign_add %q: %w", node.Name, err)
	}
	if !sum.Shape().Equal(current.Shape()) {
		return nil, fmt.Errorf("assign_add %q: result shape %v differs from variable shape %v", node.Name, sum.Shape(), current.Shape())
	}
	ctx.vars[target.Name] = sum
	return []*tensor.Tensor{sum}, nil
}

func handleInit(ctx *Context, node *Node, _ []*tensor.Tensor) ([]*tensor.Tensor, error) {
	names := ctx.Graph.Variables()
	if list := node.Attrs[AttrVariables]; list != "" {
		names = strings.Split(list, ",")
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		v, ok := ctx.Graph.Node(name)
		if !ok || v.Op != OpVariable {
			return nil, fmt.Errorf("init %q: %q is not a variable", node.Name, name)
		}
		ctx.vars[name] = v.Value.Clone()
	}
	return nil, nil
}
