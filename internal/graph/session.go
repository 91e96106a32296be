package graph

import (
	"fmt"
	"sync"

	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// Session executes a graph and owns its variable state. Variable values
// persist across Run calls for the lifetime of the session.
type Session struct {
	mu       sync.Mutex
	graph    *Graph
	registry *Registry
	vars     map[string]*tensor.Tensor
}

// NewSession validates g and creates a session with uninitialized variables.
func NewSession(g *Graph, registry ...*Registry) (*Session, error) {
	r := NewRegistry()
	if len(registry) > 0 && registry[0] != nil {
		r = registry[0]
	}
	if err := g.Validate(r); err != nil {
		return nil, err
	}
	return &Session{
		graph:    g,
		registry: r,
		vars:     make(map[string]*tensor.Tensor),
	}, nil
}

// Graph returns the graph executed by the session.
func (s *Session) Graph() *Graph {
	return s.graph
}

// run is the state of a single Run call.
type run struct {
	sess    *Session
	ctx     *Context
	feeds   map[string]*tensor.Tensor // keyed by node name
	results map[string]*tensor.Tensor // node name → output 0
	state   map[string]int            // 0 unvisited, 1 visiting, 2 done
}

// Run feeds the given output identifiers, executes what is needed to compute
// fetches (output identifiers) and targets (node names run for their side
// effects), and returns the fetched tensors keyed by identifier.
// Each node executes at most once per call; Variable reads are re-evaluated
// on every use so that reads ordered after an assignment observe it.
func (s *Session) Run(feeds map[string]*tensor.Tensor, fetches, targets []string) (map[string]*tensor.Tensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &run{
		sess:    s,
		ctx:     &Context{Graph: s.graph, vars: s.vars},
		feeds:   make(map[string]*tensor.Tensor, len(feeds)),
		results: make(map[string]*tensor.Tensor),
		state:   make(map[string]int),
	}

	for id, t := range feeds {
		node, err := s.graph.ResolveOutput(id)
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", id, err)
		}
		if node.Op == OpPlaceholder {
			if err := checkPlaceholder(node, t); err != nil {
				return nil, err
			}
		}
		r.feeds[node.Name] = t
	}

	for _, target := range targets {
		node, err := s.graph.ResolveTarget(target)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", target, err)
		}
		if _, err := r.eval(node); err != nil {
			return nil, err
		}
	}

	out := make(map[string]*tensor.Tensor, len(fetches))
	for _, id := range fetches {
		node, err := s.graph.ResolveOutput(id)
		if err != nil {
			return nil, fmt.Errorf("fetch %q: %w", id, err)
		}
		t, err := r.eval(node)
		if err != nil {
			return nil, err
		}
		out[id] = t.Clone()
	}
	return out, nil
}

// Resolve checks that id names an output that can be fetched or fed.
func (s *Session) Resolve(id string) error {
	_, err := s.graph.ResolveOutput(id)
	return err
}

// ResolveTarget checks that name is a node that can be run as a target.
func (s *Session) ResolveTarget(name string) error {
	_, err := s.graph.ResolveTarget(name)
	return err
}

func (r *run) eval(node *Node) (*tensor.Tensor, error) {
	if t, ok := r.feeds[node.Name]; ok {
		return t, nil
	}
	if node.Op != OpVariable {
		switch r.state[node.Name] {
		case 1:
			return nil, fmt.Errorf("%w at node %q", ErrCycle, node.Name)
		case 2:
			return r.results[node.Name], nil
		}
	}
	r.state[node.Name] = 1

	for _, dep := range node.Deps {
		depNode, err := r.sess.graph.ResolveTarget(dep)
		if err != nil {
			return nil, err
		}
		if _, err := r.eval(depNode); err != nil {
			return nil, err
		}
	}

	inputs := make([]*tensor.Tensor, len(node.Inputs))
	for i, id := range node.Inputs {
		if i == 0 && (node.Op == OpAssign || node.Op == OpAssignAdd) {
			continue // variable reference, not a read
		}
		in, err := r.sess.graph.ResolveOutput(id)
		if err != nil {
			return nil, err
		}
		if inputs[i], err = r.eval(in); err != nil {
			return nil, err
		}
	}

	outputs, err := r.sess.registry.Execute(r.ctx, node, inputs)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", node.Name, node.Op, err)
	}

	var result *tensor.Tensor
	if len(outputs) > 0 {
		result = outputs[0]
	}
	r.results[node.Name] = result
	r.state[node.Name] = 2
	return result, nil
}

func checkPlaceholder(node *Node, t *tensor.Tensor) error {
	if t == nil {
		return fmt.Errorf("feed for placeholder %q is nil", node.Name)
	}
	if t.DType() != node.DType {
		return fmt.Errorf("%w: placeholder %q expects %s, got %s", ErrTypeMismatch, node.Name, node.DType, t.DType())
	}
	if err := spec.Check(spec.TensorSpec{Name: node.Name, DType: node.DType, Shape: node.Shape}, t); err != nil {
		return fmt.Errorf("placeholder %q: %w", node.Name, err)
	}
	return nil
}
