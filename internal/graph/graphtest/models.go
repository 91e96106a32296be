// Package graphtest provides small reference graphs with known behavior for
// tests across packages.
package graphtest

import (
	"github.com/born-ml/parcel/internal/graph"
	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// Model is a graph together with the contract it is packaged with.
type Model struct {
	Graph   *graph.Graph
	Mapping map[string]string
	Inputs  []spec.TensorSpec
	Outputs []spec.TensorSpec
	InitOps []string
}

// Addition computes out = x + y over float32 vectors of any length.
func Addition() Model {
	b := graph.NewBuilder()
	x := b.Placeholder("some_namespace/in_x", tensor.Float32, spec.Dims(-1))
	y := b.Placeholder("some_namespace/in_y", tensor.Float32, spec.Dims(-1))
	out := b.Add("some_namespace/out", x, y)

	return Model{
		Graph: b.Graph(),
		Mapping: map[string]string{
			"x":   x,
			"y":   y,
			"out": out,
		},
		Inputs: []spec.TensorSpec{
			{Name: "x", DType: tensor.Float32, Shape: spec.Dims(-1)},
			{Name: "y", DType: tensor.Float32, Shape: spec.Dims(-1)},
		},
		Outputs: []spec.TensorSpec{
			{Name: "out", DType: tensor.Float32, Shape: spec.Dims(-1)},
		},
	}
}

// Accumulator keeps a running float32 sum: every run adds x to the
// variable and returns the new total. The variable starts at 0 once the
// "init" op has run.
func Accumulator() Model {
	b := graph.NewBuilder()
	acc := b.Variable("acc", tensor.Must(tensor.FromSlice([]float32{0})))
	x := b.Placeholder("in_x", tensor.Float32, spec.Dims(1))
	upd := b.AssignAdd("update", acc, x)
	out := b.Identity("out", acc, upd)
	initOp := b.Init("init")

	return Model{
		Graph:   b.Graph(),
		Mapping: map[string]string{"x": x, "out": out},
		Inputs: []spec.TensorSpec{
			{Name: "x", DType: tensor.Float32, Shape: spec.Dims(1)},
		},
		Outputs: []spec.TensorSpec{
			{Name: "out", DType: tensor.Float32, Shape: spec.Dims(1)},
		},
		InitOps: []string{initOp},
	}
}

// Strings appends the suffix " world" to every element of a string vector.
func Strings() Model {
	b := graph.NewBuilder()
	in := b.Placeholder("text/in", tensor.String, spec.Dims(-1))
	suffix := b.Const("text/suffix", tensor.ScalarString("world"))
	out := b.StringJoin("text/out", " ", in, suffix)

	return Model{
		Graph:   b.Graph(),
		Mapping: map[string]string{"text": in, "greeting": out},
		Inputs: []spec.TensorSpec{
			{Name: "text", DType: tensor.String, Shape: spec.Dims(-1)},
		},
		Outputs: []spec.TensorSpec{
			{Name: "greeting", DType: tensor.String, Shape: spec.Dims(-1)},
		},
	}
}

// Scaled computes out = x * (2 + 3) with a foldable constant subgraph.
func Scaled() Model {
	b := graph.NewBuilder()
	x := b.Placeholder("in_x", tensor.Float32, spec.Dims(-1))
	two := b.Const("two", tensor.Scalar(float32(2)))
	three := b.Const("three", tensor.Scalar(float32(3)))
	five := b.Add("five", two, three)
	out := b.Mul("out", x, five)

	return Model{
		Graph:   b.Graph(),
		Mapping: map[string]string{"x": x, "out": out},
		Inputs: []spec.TensorSpec{
			{Name: "x", DType: tensor.Float32, Shape: spec.Dims(-1)},
		},
		Outputs: []spec.TensorSpec{
			{Name: "out", DType: tensor.Float32, Shape: spec.Dims(-1)},
		},
	}
}

// Float32 is a shorthand for a float32 vector tensor.
func Float32(values ...float32) *tensor.Tensor {
	return tensor.Must(tensor.FromSlice(values))
}
