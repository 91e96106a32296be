package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// Operator types understood by the default registry.
const (
	OpPlaceholder = "Placeholder"
	OpConst       = "Const"
	OpVariable    = "Variable"
	OpIdentity    = "Identity"
	OpAdd         = "Add"
	OpSub         = "Sub"
	OpMul         = "Mul"
	OpDiv         = "Div"
	OpStringJoin  = "StringJoin"
	OpAssign      = "Assign"
	OpAssignAdd   = "AssignAdd"
	OpInit        = "Init"
	OpNoOp        = "NoOp"
)

// AttrSeparator is the StringJoin separator attribute.
const AttrSeparator = "separator"

// Node is a single operation in the graph.
type Node struct {
	// Name is unique within the graph and may contain '/' but not ':'.
	Name string `json:"name" yaml:"name"`
	Op   string `json:"op" yaml:"op"`

	// Inputs are data inputs given as output identifiers.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs"`
	// Deps are control dependencies: nodes run before this one.
	Deps []string `json:"deps,omitempty" yaml:"deps"`

	// DType and Shape describe a Placeholder.
	DType tensor.DataType `json:"dtype,omitempty" yaml:"dtype"`
	Shape spec.Shape      `json:"shape" yaml:"shape"`

	Attrs map[string]string `json:"attrs,omitempty" yaml:"attrs"`

	// Value is the Const value or the Variable initializer.
	Value *tensor.Tensor `json:"-" yaml:"-"`
}

// Graph is a serializable computation graph.
type Graph struct {
	Nodes []Node
	index map[string]int
}

// New creates a graph from nodes. The nodes are not validated; call Validate.
func New(nodes []Node) *Graph {
	g := &Graph{Nodes: nodes}
	g.reindex()
	return g
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.Nodes))
	for i := range g.Nodes {
		if _, dup := g.index[g.Nodes[i].Name]; !dup {
			g.index[g.Nodes[i].Name] = i
		}
	}
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	if g.index == nil {
		g.reindex()
	}
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// Clone returns a deep copy of the graph definition. Tensor values are shared.
func (g *Graph) Clone() *Graph {
	nodes := make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		n.Inputs = append([]string(nil), n.Inputs...)
		n.Deps = append([]string(nil), n.Deps...)
		if n.Shape != nil {
			n.Shape = append(spec.Shape{}, n.Shape...)
		}
		if n.Attrs != nil {
			attrs := make(map[string]string, len(n.Attrs))
			for k, v := range n.Attrs {
				attrs[k] = v
			}
			n.Attrs = attrs
		}
		nodes[i] = n
	}
	return New(nodes)
}

// ParseID splits an output identifier "name:index" into its parts. A missing
// index means output 0.
func ParseID(id string) (string, int, error) {
	colon := strings.LastIndexByte(id, ':')
	if colon < 0 {
		return id, 0, nil
	}
	idx, err := strconv.Atoi(id[colon+1:])
	if err != nil || idx < 0 {
		return "", 0, fmt.Errorf("invalid output identifier %q", id)
	}
	return id[:colon], idx, nil
}

// OutputID returns the identifier of output 0 of the named node.
func OutputID(name string) string {
	return name + ":0"
}

// numOutputs returns how many outputs a node of the given op produces.
func numOutputs(op string) int {
	switch op {
	case OpInit, OpNoOp:
		return 0
	default:
		return 1
	}
}

// ResolveOutput checks that id names an existing node output.
func (g *Graph) ResolveOutput(id string) (*Node, error) {
	name, idx, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	node, ok := g.Node(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	if idx >= numOutputs(node.Op) {
		return nil, fmt.Errorf("%w: node %q (%s) has no output %d", ErrUnknownNode, name, node.Op, idx)
	}
	return node, nil
}

// ResolveTarget checks that name (optionally with an output suffix) is an
// existing node that can be run for its side effects.
func (g *Graph) ResolveTarget(name string) (*Node, error) {
	nodeName, _, err := ParseID(name)
	if err != nil {
		return nil, err
	}
	node, ok := g.Node(nodeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, nodeName)
	}
	return node, nil
}

// Variables returns the names of all Variable nodes in declaration order.
func (g *Graph) Variables() []string {
	var names []string
	for i := range g.Nodes {
		if g.Nodes[i].Op == OpVariable {
			names = append(names, g.Nodes[i].Name)
		}
	}
	return names
}

// Validate checks structural correctness: unique non-empty names, known
// operators (per registry), resolvable inputs and dependencies, and the
// presence of values where an operator requires one.
func (g *Graph) Validate(registry *Registry) error {
	seen := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Name == "" {
			return fmt.Errorf("%w: node %d has no name", ErrInvalidGraph, i)
		}
		if strings.ContainsRune(n.Name, ':') {
			return fmt.Errorf("%w: node name %q must not contain ':'", ErrInvalidGraph, n.Name)
		}
		if seen[n.Name] {
			return fmt.Errorf("%w: duplicate node name %q", ErrInvalidGraph, n.Name)
		}
		seen[n.Name] = true

		if _, ok := registry.Get(n.Op); !ok {
			return fmt.Errorf("%w: node %q: unsupported operator %q", ErrInvalidGraph, n.Name, n.Op)
		}

		switch n.Op {
		case OpConst:
			if n.Value == nil {
				return fmt.Errorf("%w: const %q has no value", ErrInvalidGraph, n.Name)
			}
		case OpPlaceholder:
			if !n.DType.Valid() {
				return fmt.Errorf("%w: placeholder %q has no dtype", ErrInvalidGraph, n.Name)
			}
		case OpVariable:
			if n.Value == nil {
				return fmt.Errorf("%w: variable %q has no initial value", ErrInvalidGraph, n.Name)
			}
		}
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		for _, in := range n.Inputs {
			if _, err := g.ResolveOutput(in); err != nil {
				return fmt.Errorf("%w: node %q input: %w", ErrInvalidGraph, n.Name, err)
			}
		}
		for _, dep := range n.Deps {
			if _, err := g.ResolveTarget(dep); err != nil {
				return fmt.Errorf("%w: node %q dependency: %w", ErrInvalidGraph, n.Name, err)
			}
		}
	}
	return nil
}
