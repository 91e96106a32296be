package graph

import (
	"fmt"

	"github.com/born-ml/parcel/internal/tensor"
)

// foldable lists pure operators whose result depends only on their inputs.
var foldable = map[string]bool{
	OpIdentity:   true,
	OpAdd:        true,
	OpSub:        true,
	OpMul:        true,
	OpDiv:        true,
	OpStringJoin: true,
}

// Fold performs constant folding: every pure node without control
// dependencies whose inputs are all constants is replaced by a Const of the
// same name holding its value. Node names, and therefore output
// identifiers, are preserved. The input graph is not modified.
//
// Returns the rewritten graph and the number of folded nodes. A graph that
// fails validation returns ErrNotFoldable.
func Fold(g *Graph) (*Graph, int, error) {
	registry := NewRegistry()
	if err := g.Validate(registry); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrNotFoldable, err)
	}

	out := g.Clone()
	ctx := &Context{Graph: out, vars: map[string]*tensor.Tensor{}}
	folded := 0

	for changed := true; changed; {
		changed = false
		for i := range out.Nodes {
			n := &out.Nodes[i]
			if !foldable[n.Op] || len(n.Deps) > 0 {
				continue
			}
			inputs, ok := constInputs(out, n)
			if !ok {
				continue
			}
			results, err := registry.Execute(ctx, n, inputs)
			if err != nil {
				// Leave the node for run time, where the error surfaces with
				// the caller's inputs.
				continue
			}
			*n = Node{Name: n.Name, Op: OpConst, Value: results[0]}
			folded++
			changed = true
		}
	}
	return out, folded, nil
}

func constInputs(g *Graph, n *Node) ([]*tensor.Tensor, bool) {
	if len(n.Inputs) == 0 {
		return nil, false
	}
	inputs := make([]*tensor.Tensor, len(n.Inputs))
	for i, id := range n.Inputs {
		in, err := g.ResolveOutput(id)
		if err != nil || in.Op != OpConst {
			return nil, false
		}
		inputs[i] = in.Value
	}
	return inputs, true
}
