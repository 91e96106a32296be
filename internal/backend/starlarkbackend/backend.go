// Package starlarkbackend runs models written as Starlark scripts
// (platform "starlark").
//
// A model script declares the identifiers it consumes and produces and an
// infer function. Optional init functions prepare the state dict, which the
// host keeps alive for the lifetime of the session:
//
//	INPUTS = ["x"]
//	OUTPUTS = ["total"]
//
//	def init(state):
//	    state["total"] = 0.0
//
//	def infer(inputs, state):
//	    state["total"] += inputs["x"][0]
//	    return {"total": [state["total"]]}
//
// Tensors cross the boundary as nested lists (scalars as plain values).
package starlarkbackend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/born-ml/parcel/internal/backend"
)

// Platform is the identifier of this backend.
const Platform = "starlark"

// ArtifactName is the file name of the script inside data/.
const ArtifactName = "model.star"

// Script globals.
const (
	globalInputs  = "INPUTS"
	globalOutputs = "OUTPUTS"
	entryPoint    = "infer"
)

var fileOptions = &syntax.FileOptions{
	While:     true,
	Recursion: true,
}

// Backend implements backend.Backend for Starlark scripts.
type Backend struct {
	logger *slog.Logger
}

// New creates a Starlark backend.
func New(logger *slog.Logger) backend.Backend {
	return &Backend{logger: backend.DiscardLogger(logger)}
}

// Registration returns the registry entry for this backend.
func Registration() backend.Registration {
	return backend.Registration{Platform: Platform, Factory: New}
}

// Platform implements backend.Backend.
func (b *Backend) Platform() string { return Platform }

// ArtifactName implements backend.Backend.
func (b *Backend) ArtifactName() string { return ArtifactName }

// Serialize implements backend.Backend. Source.Model may be a string or
// []byte holding the script; Source.Path names a script file.
func (b *Backend) Serialize(_ context.Context, src backend.Source) ([]byte, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	var script []byte
	switch m := src.Model.(type) {
	case nil:
		//nolint:gosec // G304: script path is provided by the caller
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read script: %w", err)
		}
		script = data
	case string:
		script = []byte(m)
	case []byte:
		script = append([]byte(nil), m...)
	default:
		return nil, fmt.Errorf("%w: %T is not a Starlark script", backend.ErrUnsupportedSource, src.Model)
	}

	if _, err := b.compile(ArtifactName, script); err != nil {
		return nil, err
	}
	return script, nil
}

// Load implements backend.Backend.
func (b *Backend) Load(ctx context.Context, req backend.LoadRequest) (backend.Session, error) {
	logger := b.logger
	if req.Logger != nil {
		logger = req.Logger
	}

	path := filepath.Join(req.DataDir, ArtifactName)
	//nolint:gosec // G304: path comes from the package layout
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
	}
	m, err := b.compile(path, script)
	if err != nil {
		return nil, err
	}

	for name, id := range req.Mapping {
		if !m.inputs[id] && !m.outputs[id] {
			return nil, &backend.IdentifierError{
				Name:       name,
				Identifier: id,
				Err:        fmt.Errorf("not listed in %s or %s", globalInputs, globalOutputs),
			}
		}
	}

	inits := make([]*starlark.Function, len(req.InitOps))
	for i, op := range req.InitOps {
		fn, ok := m.globals[op].(*starlark.Function)
		if !ok {
			return nil, &backend.IdentifierError{Name: "init op", Identifier: op, Err: fmt.Errorf("not a function")}
		}
		inits[i] = fn
	}

	s := &session{
		model:   m,
		state:   starlark.NewDict(8),
		outputs: req.Outputs,
		logger:  logger,
	}
	for _, fn := range inits {
		if _, err := s.call(ctx, fn, starlark.Tuple{s.state}); err != nil {
			return nil, fmt.Errorf("failed to run init op %s: %w", fn.Name(), err)
		}
	}

	logger.Debug("script loaded", "path", path, "init_ops", req.InitOps)
	return s, nil
}

// model is a compiled and executed script.
type model struct {
	globals starlark.StringDict
	infer   *starlark.Function
	inputs  map[string]bool
	outputs map[string]bool
}

func (b *Backend) compile(name string, script []byte) (*model, error) {
	thread := &starlark.Thread{
		Name: "load:" + name,
		Print: func(_ *starlark.Thread, msg string) {
			b.logger.Debug("starlark", "script", name, "msg", msg)
		},
	}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, name, script, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
	}

	fn, ok := globals[entryPoint].(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%w: script does not define %s()", backend.ErrInvalidArtifact, entryPoint)
	}
	if n := fn.NumParams(); n < 1 || n > 2 {
		return nil, fmt.Errorf("%w: %s() must take (inputs) or (inputs, state)", backend.ErrInvalidArtifact, entryPoint)
	}

	inputs, err := stringList(globals, globalInputs)
	if err != nil {
		return nil, err
	}
	outputs, err := stringList(globals, globalOutputs)
	if err != nil {
		return nil, err
	}
	return &model{globals: globals, infer: fn, inputs: inputs, outputs: outputs}, nil
}

func stringList(globals starlark.StringDict, name string) (map[string]bool, error) {
	v, ok := globals[name]
	if !ok {
		return nil, fmt.Errorf("%w: script does not define %s", backend.ErrInvalidArtifact, name)
	}
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list of strings", backend.ErrInvalidArtifact, name)
	}
	set := make(map[string]bool)
	it := iter.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a list of strings", backend.ErrInvalidArtifact, name)
		}
		set[s] = true
	}
	return set, nil
}
