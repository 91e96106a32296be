package pack

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// Model is a loaded package bound to a running backend session.
//
// Backend state (variables, Starlark state dicts) lives as long as the
// Model and is never reset between Infer calls. A Model is not safe for
// concurrent Infer calls on stateful models; callers serialize access.
type Model struct {
	path             string
	version          int
	config           PackageConfig
	backendConfig    BackendConfig
	session          backend.Session
	allowExtraInputs bool
	logger           *slog.Logger
}

// Path returns the package directory.
func (m *Model) Path() string { return m.path }

// Version returns the loaded version directory number.
func (m *Model) Version() int { return m.version }

// Config returns the package config.
func (m *Model) Config() PackageConfig { return m.config }

// BackendConfig returns the backend config of the loaded version.
func (m *Model) BackendConfig() BackendConfig { return m.backendConfig }

// Infer validates inputs against the input spec, runs the backend and
// returns the declared outputs keyed by declared name.
func (m *Model) Infer(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	if m.session == nil {
		return nil, ErrModelClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, s := range m.config.InputSpec {
		if _, ok := inputs[s.Name]; !ok {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Names: missing}
	}

	var extra []string
	for name := range inputs {
		if _, ok := spec.Find(m.config.InputSpec, name); !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		slices.Sort(extra)
		if !m.allowExtraInputs {
			return nil, &UnexpectedInputError{Names: extra}
		}
		m.logger.Debug("dropping undeclared inputs", "names", extra)
	}

	mapping := m.backendConfig.NodeNameMapping
	feeds := make(map[string]*tensor.Tensor, len(m.config.InputSpec))
	for _, s := range m.config.InputSpec {
		t := inputs[s.Name]
		if err := spec.Check(s, t); err != nil {
			return nil, err
		}
		feeds[mapping[s.Name]] = t
	}

	fetches := make([]string, 0, len(m.config.OutputSpec))
	for _, s := range m.config.OutputSpec {
		fetches = append(fetches, mapping[s.Name])
	}

	raw, err := m.session.Run(ctx, feeds, fetches)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s model %q: %w", m.config.Platform, m.config.ModelName, err)
	}

	outputs := make(map[string]*tensor.Tensor, len(m.config.OutputSpec))
	for _, s := range m.config.OutputSpec {
		t, ok := raw[mapping[s.Name]]
		if !ok {
			return nil, &spec.MismatchError{
				Name:     s.Name,
				Expected: fmt.Sprintf("%s %s", s.DType, s.Shape),
				Actual:   "absent",
				Reason:   "declared output was not produced",
			}
		}
		if err := spec.Check(s, t); err != nil {
			return nil, err
		}
		outputs[s.Name] = t
	}
	return outputs, nil
}

// Close releases the backend session. Further Infer calls fail with
// ErrModelClosed.
func (m *Model) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	return err
}
