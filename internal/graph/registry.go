package graph

import (
	"fmt"
	"sort"

	"github.com/born-ml/parcel/internal/tensor"
)

// OpHandler processes a node and returns its output tensors.
type OpHandler func(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error)

// Context provides graph and variable state to operators.
type Context struct {
	Graph *Graph
	vars  map[string]*tensor.Tensor
}

// Registry maps operator types to handler functions.
type Registry struct {
	handlers map[string]OpHandler
}

// NewRegistry creates a new operator registry with all supported operators.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]OpHandler),
	}

	r.registerSourceOps()
	r.registerMathOps()
	r.registerStateOps()
	r.registerStringOps()

	return r
}

// Register adds a custom operator handler.
func (r *Registry) Register(opType string, handler OpHandler) {
	r.handlers[opType] = handler
}

// Get returns the handler for an operator type.
func (r *Registry) Get(opType string) (OpHandler, bool) {
	h, ok := r.handlers[opType]
	return h, ok
}

// Execute runs an operator with the given inputs.
func (r *Registry) Execute(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	handler, ok := r.handlers[node.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOp, node.Op)
	}
	return handler(ctx, node, inputs)
}

// SupportedOps returns a sorted list of all supported operator types.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// registerSourceOps adds operators that take no data inputs.
func (r *Registry) registerSourceOps() {
	r.Register(OpPlaceholder, handlePlaceholder)
	r.Register(OpConst, handleConst)
	r.Register(OpIdentity, handleIdentity)
	r.Register(OpNoOp, handleNoOp)
}

func handlePlaceholder(_ *Context, node *Node, _ []*tensor.Tensor) ([]*tensor.Tensor, error) {
	// Fed values never reach the handler.
	return nil, fmt.Errorf("%w: %q", ErrNotFed, node.Name)
}

func handleConst(_ *Context, node *Node, _ []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if node.Value == nil {
		return nil, fmt.Errorf("const %q has no value", node.Name)
	}
	return []*tensor.Tensor{node.Value}, nil
}

func handleIdentity(_ *Context, _ *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("identity requires 1 input, got %d", len(inputs))
	}
	return inputs, nil
}

func handleNoOp(_ *Context, _ *Node, _ []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return nil, nil
}
