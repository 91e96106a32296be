// Package graphbackend runs packaged dataflow graphs (platform "graph").
//
// Sources accepted by Serialize:
//   - Source.Model: a *graph.Graph
//   - Source.Path: a .pgraph artifact, or a YAML graph (.yaml / .yml)
package graphbackend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/graph"
	"github.com/born-ml/parcel/internal/serialization"
	"github.com/born-ml/parcel/internal/tensor"
)

// Platform is the identifier of this backend.
const Platform = "graph"

// ArtifactName is the file name of the serialized graph inside data/.
const ArtifactName = "model.pgraph"

// Backend implements backend.Backend for graphs.
type Backend struct {
	logger *slog.Logger
}

// New creates a graph backend.
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

// Serialize implements backend.Backend.
func (b *Backend) Serialize(_ context.Context, src backend.Source) ([]byte, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	if src.Model != nil {
		g, ok := src.Model.(*graph.Graph)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a *graph.Graph", backend.ErrUnsupportedSource, src.Model)
		}
		if err := g.Validate(graph.NewRegistry()); err != nil {
			return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
		}
		return serialization.Marshal(g, map[string]string{"source": "memory"})
	}

	//nolint:gosec // G304: artifact path is provided by the caller
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(src.Path)); {
	case ext == ".yaml" || ext == ".yml":
		g, err := graph.ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
		}
		b.logger.Debug("converted YAML graph", "path", src.Path, "nodes", len(g.Nodes))
		return serialization.Marshal(g, map[string]string{"source": filepath.Base(src.Path)})
	case bytes.HasPrefix(data, []byte(serialization.MagicBytes)):
		// Decode to validate; the original bytes are kept as-is.
		g, _, err := serialization.Unmarshal(data, serialization.ReaderOptions{})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
		}
		if err := g.Validate(graph.NewRegistry()); err != nil {
			return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s is neither a graph artifact nor a YAML graph", backend.ErrUnsupportedSource, src.Path)
	}
}

// Load implements backend.Backend.
func (b *Backend) Load(ctx context.Context, req backend.LoadRequest) (backend.Session, error) {
	logger := b.logger
	if req.Logger != nil {
		logger = req.Logger
	}

	path := filepath.Join(req.DataDir, ArtifactName)
	g, header, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
	}

	sess, err := graph.NewSession(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
	}

	for name, id := range req.Mapping {
		if err := sess.Resolve(id); err != nil {
			return nil, &backend.IdentifierError{Name: name, Identifier: id, Err: err}
		}
	}
	for _, op := range req.InitOps {
		if err := sess.ResolveTarget(op); err != nil {
			return nil, &backend.IdentifierError{Name: "init op", Identifier: op, Err: err}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.InitOps) > 0 {
		if _, err := sess.Run(nil, nil, req.InitOps); err != nil {
			return nil, fmt.Errorf("failed to run init ops: %w", err)
		}
	}

	logger.Debug("graph loaded",
		"path", path,
		"nodes", len(g.Nodes),
		"variables", len(g.Variables()),
		"created_at", header.CreatedAt,
		"init_ops", req.InitOps)

	return &session{sess: sess}, nil
}

// session adapts graph.Session to backend.Session.
type session struct {
	sess   *graph.Session
	closed bool
}

func (s *session) Run(ctx context.Context, feeds map[string]*tensor.Tensor, fetches []string) (map[string]*tensor.Tensor, error) {
	if s.closed {
		return nil, backend.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := s.sess.Run(feeds, fetches, nil)
	if err != nil {
		if errors.Is(err, graph.ErrUnknownNode) {
			return nil, fmt.Errorf("%w: %w", backend.ErrUnresolvedIdentifier, err)
		}
		return nil, err
	}
	return out, nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
