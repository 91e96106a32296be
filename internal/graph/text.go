package graph

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// Text format:
//
//	nodes:
//	  - name: in_x
//	    op: Placeholder
//	    dtype: float32
//	    shape: [null]
//	  - name: two
//	    op: Const
//	    value: {dtype: float32, shape: [], data: [2]}
//	  - name: out
//	    op: Mul
//	    inputs: ["in_x:0", "two:0"]

type yamlGraph struct {
	Nodes []yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	Name   string            `yaml:"name"`
	Op     string            `yaml:"op"`
	Inputs []string          `yaml:"inputs,omitempty"`
	Deps   []string          `yaml:"deps,omitempty"`
	DType  tensor.DataType   `yaml:"dtype,omitempty"`
	Shape  *spec.Shape       `yaml:"shape,omitempty"`
	Attrs  map[string]string `yaml:"attrs,omitempty"`
	Value  *yamlValue        `yaml:"value,omitempty"`
}

type yamlValue struct {
	DType tensor.DataType `yaml:"dtype"`
	// Shape defaults to one dimension holding all of Data.
	Shape []int `yaml:"shape"`
	Data  []any `yaml:"data,flow"`
}

// ParseYAML decodes a graph from its YAML text format and validates it
// against the default registry.
func ParseYAML(data []byte) (*Graph, error) {
	var doc yamlGraph
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}

	nodes := make([]Node, len(doc.Nodes))
	for i, yn := range doc.Nodes {
		nodes[i] = Node{
			Name:   yn.Name,
			Op:     yn.Op,
			Inputs: yn.Inputs,
			Deps:   yn.Deps,
			DType:  yn.DType,
			Attrs:  yn.Attrs,
		}
		if yn.Shape != nil {
			nodes[i].Shape = *yn.Shape
		}
		if yn.Value != nil {
			v, err := yn.Value.tensor()
			if err != nil {
				return nil, fmt.Errorf("node %q value: %w", yn.Name, err)
			}
			nodes[i].Value = v
		}
	}

	g := New(nodes)
	if err := g.Validate(NewRegistry()); err != nil {
		return nil, err
	}
	return g, nil
}

// FormatYAML encodes a graph in its YAML text format.
func FormatYAML(g *Graph) ([]byte, error) {
	doc := yamlGraph{Nodes: make([]yamlNode, len(g.Nodes))}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		doc.Nodes[i] = yamlNode{
			Name:   n.Name,
			Op:     n.Op,
			Inputs: n.Inputs,
			Deps:   n.Deps,
			DType:  n.DType,
			Attrs:  n.Attrs,
		}
		if n.Shape != nil {
			doc.Nodes[i].Shape = &n.Shape
		}
		if n.Value != nil {
			doc.Nodes[i].Value = valueToYAML(n.Value)
		}
	}
	return yaml.Marshal(&doc)
}

func (v *yamlValue) tensor() (*tensor.Tensor, error) {
	var shape tensor.Shape
	if v.Shape != nil {
		shape = tensor.Shape(v.Shape)
	}
	return tensor.FromValues(v.DType, shape, v.Data)
}

func valueToYAML(t *tensor.Tensor) *yamlValue {
	return &yamlValue{
		DType: t.DType(),
		Shape: append([]int{}, t.Shape()...),
		Data:  t.Elements(),
	}
}
