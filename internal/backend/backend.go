// Package backend defines the contract between packages and the execution
// engines that serialize, load and run their models.
//
// A Backend is registered under a platform string. The package writer uses
// it to serialize a model artifact into the payload directory; the loader
// uses it to turn the payload directory plus the backend config into a
// running Session.
package backend

import (
	"context"
	"log/slog"

	"github.com/born-ml/parcel/internal/tensor"
)

// Backend serializes and loads models for one platform.
type Backend interface {
	// Platform returns the identifier written to the package config.
	Platform() string

	// ArtifactName returns the file name of the artifact inside data/.
	ArtifactName() string

	// Serialize produces the artifact bytes from exactly one source.
	Serialize(ctx context.Context, src Source) ([]byte, error)

	// Load opens the artifact in req.DataDir, validates every mapped
	// identifier and runs the init ops once.
	Load(ctx context.Context, req LoadRequest) (Session, error)
}

// Session runs a loaded model. State held by the engine persists across
// Run calls until Close. A Session is not safe for concurrent use when the
// model is stateful.
type Session interface {
	// Run feeds engine identifiers and returns the fetched identifiers.
	Run(ctx context.Context, feeds map[string]*tensor.Tensor, fetches []string) (map[string]*tensor.Tensor, error)
	Close() error
}

// Source describes where a model comes from. Exactly one field must be set.
type Source struct {
	// Path is a pre-serialized artifact on disk.
	Path string
	// Model is an in-memory model understood by the backend.
	Model any
}

// Validate reports whether exactly one source is set.
func (s Source) Validate() error {
	switch {
	case s.Path != "" && s.Model != nil:
		return ErrConflictingSource
	case s.Path == "" && s.Model == nil:
		return ErrMissingSource
	default:
		return nil
	}
}

// LoadRequest carries everything a backend needs to construct a session.
type LoadRequest struct {
	// DataDir is the version's data/ directory.
	DataDir string
	// Mapping translates declared tensor names to engine identifiers.
	Mapping map[string]string
	// Inputs and Outputs list the engine identifiers of declared inputs and
	// outputs together with their declared element types.
	Inputs  map[string]tensor.DataType
	Outputs map[string]tensor.DataType
	// InitOps run once, in order, before the session is returned.
	InitOps []string
	// Options are backend-private settings from the backend config.
	Options map[string]string
	Logger  *slog.Logger
}

// Factory creates a backend instance. A nil logger means discard.
type Factory func(logger *slog.Logger) Backend

// DiscardLogger returns logger, or a logger that drops everything when nil.
func DiscardLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
