// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph builds the frozen dataflow graphs run by the "graph"
// platform.
//
// Graphs are handed to pack.Create as an in-memory source, or written as
// YAML text and referenced by path. Node outputs are addressed as
// "name:index"; the node name alone targets a node for execution.
//
// Example:
//
//	b := graph.NewBuilder()
//	x := b.Placeholder("x", tensor.Float32, pack.Dims(-1))
//	y := b.Placeholder("y", tensor.Float32, pack.Dims(-1))
//	b.Add("sum", x, y)
//
//	_, err := pack.Create(ctx, "models/addition", pack.CreateParams{
//	    ModelName: "addition",
//	    Platform:  backend.GraphPlatform,
//	    Source:    backend.Source{Model: b.Graph()},
//	    NodeNameMapping: map[string]string{"x": "x:0", "y": "y:0", "out": "sum:0"},
//	    InputSpec:  []pack.TensorSpec{{Name: "x", DType: tensor.Float32, Shape: pack.Dims(-1)}, ...},
//	    OutputSpec: []pack.TensorSpec{{Name: "out", DType: tensor.Float32, Shape: pack.Dims(-1)}},
//	})
package graph

import (
	"github.com/born-ml/parcel/internal/graph"
)

type (
	// Graph is a validated set of nodes.
	Graph = graph.Graph

	// Node is one operation in a graph.
	Node = graph.Node

	// Builder constructs graphs programmatically.
	Builder = graph.Builder
)

// Operators understood by the graph runtime.
const (
	OpPlaceholder = graph.OpPlaceholder
	OpConst       = graph.OpConst
	OpVariable    = graph.OpVariable
	OpIdentity    = graph.OpIdentity
	OpAdd         = graph.OpAdd
	OpSub         = graph.OpSub
	OpMul         = graph.OpMul
	OpDiv         = graph.OpDiv
	OpStringJoin  = graph.OpStringJoin
	OpAssign      = graph.OpAssign
	OpAssignAdd   = graph.OpAssignAdd
	OpInit        = graph.OpInit
	OpNoOp        = graph.OpNoOp
)

var (
	// New wraps nodes into a graph without validating it.
	New = graph.New

	// NewBuilder creates an empty builder.
	NewBuilder = graph.NewBuilder

	// ParseYAML decodes the YAML graph text format.
	ParseYAML = graph.ParseYAML

	// FormatYAML encodes g in the YAML graph text format.
	FormatYAML = graph.FormatYAML

	// Fold replaces constant subgraphs with Const nodes and reports how many
	// nodes were folded.
	Fold = graph.Fold

	// OutputID returns the identifier of a node's first output.
	OutputID = graph.OutputID
)

var (
	ErrInvalidGraph  = graph.ErrInvalidGraph
	ErrUnknownNode   = graph.ErrUnknownNode
	ErrNotFed        = graph.ErrNotFed
	ErrUninitialized = graph.ErrUninitialized
	ErrCycle         = graph.ErrCycle
	ErrTypeMismatch  = graph.ErrTypeMismatch
	ErrUnsupportedOp = graph.ErrUnsupportedOp
)
