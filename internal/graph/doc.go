// Package graph implements a small dataflow graph execution engine.
//
// A Graph is a list of named nodes. Each node applies an operator (Add,
// Variable, AssignAdd, StringJoin, ...) to the outputs of other nodes and
// produces zero or one output tensor. Outputs are addressed with identifiers
// of the form "node_name:index" (":0" may be omitted), so a node
// "some_namespace/out" is fetched as "some_namespace/out:0".
//
// Key components:
//   - Graph, Node: the serializable graph definition
//   - Builder: programmatic graph construction
//   - Session: executes a graph, owns variable state across runs
//   - Registry: operator type → handler mapping
//   - ParseYAML: human-editable text format
//   - Fold: constant folding rewrite
//
// Variables are stateful. They start uninitialized; running an Init node
// (or an Assign) gives them a value that persists for the lifetime of the
// Session, so the accumulator pattern works:
//
//	acc := b.Variable("acc", tensor.Scalar(float32(0)))
//	x := b.Placeholder("in_x", tensor.Float32, spec.Dims())
//	upd := b.AssignAdd("update", acc, x)
//	b.Identity("out", acc, upd)
//	b.Init("init")
//
//	sess, _ := graph.NewSession(b.Graph())
//	_, _ = sess.Run(nil, nil, []string{"init"})
//	out, _ := sess.Run(map[string]*tensor.Tensor{"in_x:0": two}, []string{"out:0"}, nil)
package graph
