package graph

import (
	"strings"

	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// Builder constructs graphs programmatically. Methods return the output
// identifier of the created node ("name:0"), or the node name for nodes
// without outputs. Errors surface when the graph is validated.
type Builder struct {
	nodes []Node
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(n Node) string {
	b.nodes = append(b.nodes, n)
	if numOutputs(n.Op) == 0 {
		return n.Name
	}
	return OutputID(n.Name)
}

// Placeholder adds an input fed at run time.
func (b *Builder) Placeholder(name string, dtype tensor.DataType, shape spec.Shape) string {
	return b.add(Node{Name: name, Op: OpPlaceholder, DType: dtype, Shape: shape})
}

// Const adds a constant.
func (b *Builder) Const(name string, value *tensor.Tensor) string {
	return b.add(Node{Name: name, Op: OpConst, Value: value})
}

// Variable adds a stateful variable with the given initial value.
func (b *Builder) Variable(name string, initial *tensor.Tensor) string {
	return b.add(Node{Name: name, Op: OpVariable, Value: initial})
}

// Add adds x + y.
func (b *Builder) Add(name, x, y string) string {
	return b.add(Node{Name: name, Op: OpAdd, Inputs: []string{x, y}})
}

// Sub adds x - y.
func (b *Builder) Sub(name, x, y string) string {
	return b.add(Node{Name: name, Op: OpSub, Inputs: []string{x, y}})
}

// Mul adds x * y.
func (b *Builder) Mul(name, x, y string) string {
	return b.add(Node{Name: name, Op: OpMul, Inputs: []string{x, y}})
}

// Div adds x / y.
func (b *Builder) Div(name, x, y string) string {
	return b.add(Node{Name: name, Op: OpDiv, Inputs: []string{x, y}})
}

// Identity forwards input, running deps first.
func (b *Builder) Identity(name, input string, deps ...string) string {
	return b.add(Node{Name: name, Op: OpIdentity, Inputs: []string{input}, Deps: targets(deps)})
}

// StringJoin joins string inputs element-wise with sep.
func (b *Builder) StringJoin(name, sep string, inputs ...string) string {
	return b.add(Node{
		Name:   name,
		Op:     OpStringJoin,
		Inputs: inputs,
		Attrs:  map[string]string{AttrSeparator: sep},
	})
}

// Assign sets variable to value.
func (b *Builder) Assign(name, variable, value string) string {
	return b.add(Node{Name: name, Op: OpAssign, Inputs: []string{variable, value}})
}

// AssignAdd adds value to variable in place.
func (b *Builder) AssignAdd(name, variable, value string) string {
	return b.add(Node{Name: name, Op: OpAssignAdd, Inputs: []string{variable, value}})
}

// Init adds an initializer for the named variables, or for all variables
// when none are given.
func (b *Builder) Init(name string, variables ...string) string {
	n := Node{Name: name, Op: OpInit}
	if len(variables) > 0 {
		n.Attrs = map[string]string{AttrVariables: strings.Join(targets(variables), ",")}
	}
	return b.add(n)
}

// NoOp adds a node that only groups control dependencies.
func (b *Builder) NoOp(name string, deps ...string) string {
	return b.add(Node{Name: name, Op: OpNoOp, Deps: targets(deps)})
}

// Graph returns the constructed graph.
func (b *Builder) Graph() *Graph {
	return New(append([]Node(nil), b.nodes...))
}

// targets strips output suffixes so identifiers can be used as node names.
func targets(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		name, _, err := ParseID(id)
		if err != nil {
			name = id
		}
		out[i] = name
	}
	return out
}
