package pack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// CreateParams describes a package to create.
type CreateParams struct {
	ModelName string
	Platform  string

	// NodeNameMapping translates declared names to engine identifiers.
	// Nil means every declared name is its own identifier.
	NodeNameMapping map[string]string

	InputSpec  []spec.TensorSpec
	OutputSpec []spec.TensorSpec

	// Source holds exactly one of an artifact path or an in-memory model.
	Source backend.Source

	// InitOpNames run once each time the package is loaded.
	InitOpNames []string

	// Options are stored verbatim in the backend config.
	Options map[string]string

	// TestInput, when set, is run through the staged package before it is
	// moved into place. ExpectedOutput requires TestInput.
	TestInput      map[string]*tensor.Tensor
	ExpectedOutput map[string]*tensor.Tensor
}

// Package describes a package written by Create.
type Package struct {
	Path          string
	Version       int
	Config        PackageConfig
	BackendConfig BackendConfig
	// Verified reports whether a test inference ran before the package was
	// moved into place.
	Verified bool
}

// Create writes a new package at path. The tree is assembled in a hidden
// staging directory next to path, verified there when TestInput is given,
// and renamed to path only after every step succeeded. On error nothing
// is left on disk.
func Create(ctx context.Context, path string, p CreateParams, opts ...Option) (*Package, error) {
	o := newOptions(opts)
	start := time.Now()

	if err := checkFree(path); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	mapping := p.mapping()

	b, err := o.registry.New(p.Platform, o.logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	staging := stagingPath(path)
	if err := os.Mkdir(staging, 0o755); err != nil { //nolint:gosec // G301: package directories are meant to be shared
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	cfg := PackageConfig{
		FormatVersion: FormatVersion,
		ModelName:     p.ModelName,
		Platform:      p.Platform,
		InputSpec:     p.InputSpec,
		OutputSpec:    p.OutputSpec,
	}
	if err := writeJSON(filepath.Join(staging, ConfigFileName), cfg); err != nil {
		return nil, err
	}

	artifact, err := b.Serialize(ctx, p.Source)
	if err != nil {
		if errors.Is(err, backend.ErrConflictingSource) || errors.Is(err, backend.ErrMissingSource) {
			return nil, &ArgumentError{Reason: "exactly one model source must be given", Err: err}
		}
		return nil, fmt.Errorf("failed to serialize %s model: %w", p.Platform, err)
	}

	bcfg := BackendConfig{
		NodeNameMapping: mapping,
		InitOpNames:     InitOps(p.InitOpNames),
		Options:         maps.Clone(p.Options),
	}
	artifact, applied, err := applyTransform(ctx, b, artifact, o)
	if err != nil {
		return nil, err
	}
	if applied != "" {
		if bcfg.Options == nil {
			bcfg.Options = make(map[string]string, 1)
		}
		bcfg.Options["transform"] = applied
	}

	vdir := versionDir(staging, writeVersion)
	dataDir := filepath.Join(vdir, DataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: package directories are meant to be shared
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	//nolint:gosec // G306: package files are meant to be shared
	if err := os.WriteFile(filepath.Join(dataDir, b.ArtifactName()), artifact, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := writeJSON(filepath.Join(vdir, ConfigFileName), bcfg); err != nil {
		return nil, err
	}

	verified := false
	if p.TestInput != nil {
		if err := verifyDir(ctx, staging, p.TestInput, p.ExpectedOutput, o); err != nil {
			o.logger.Warn("package verification failed", "path", path, "error", err)
			return nil, &VerificationError{Path: path, Err: err}
		}
		verified = true
	}

	if err := checkFree(path); err != nil {
		return nil, err
	}
	if err := os.Rename(staging, path); err != nil {
		return nil, fmt.Errorf("failed to move package into place: %w", err)
	}
	committed = true

	o.logger.Info("package created",
		"path", path,
		"model", p.ModelName,
		"platform", p.Platform,
		"artifact_bytes", len(artifact),
		"transform", applied,
		"verified", verified,
		"duration", time.Since(start))

	return &Package{
		Path:          path,
		Version:       writeVersion,
		Config:        cfg,
		BackendConfig: bcfg,
		Verified:      verified,
	}, nil
}

func (p *CreateParams) validate() error {
	switch {
	case p.ModelName == "":
		return &ArgumentError{Reason: "model name is empty"}
	case p.Platform == "":
		return &ArgumentError{Reason: "platform is empty"}
	case p.ExpectedOutput != nil && p.TestInput == nil:
		return &ArgumentError{Reason: "expected output given without test input"}
	}
	if err := p.Source.Validate(); err != nil {
		return &ArgumentError{Reason: "exactly one model source must be given", Err: err}
	}
	if err := spec.Validate(p.InputSpec, p.OutputSpec); err != nil {
		return err
	}
	if p.NodeNameMapping != nil {
		if missing := missingMappings(p.NodeNameMapping, p.InputSpec, p.OutputSpec); len(missing) > 0 {
			return &ArgumentError{Reason: fmt.Sprintf("node name mapping has no entry for %v", missing)}
		}
	}
	for i, op := range p.InitOpNames {
		if op == "" {
			return &ArgumentError{Reason: fmt.Sprintf("init op %d is empty", i)}
		}
	}
	return nil
}

// mapping returns the node name mapping, defaulting to identity.
func (p *CreateParams) mapping() map[string]string {
	if p.NodeNameMapping != nil {
		return maps.Clone(p.NodeNameMapping)
	}
	m := make(map[string]string, len(p.InputSpec)+len(p.OutputSpec))
	for _, list := range [][]spec.TensorSpec{p.InputSpec, p.OutputSpec} {
		for _, s := range list {
			m[s.Name] = s.Name
		}
	}
	return m
}

// applyTransform runs the requested transform over artifact. It returns
// the artifact to store and the name of the transform that was applied,
// or "" when none was.
func applyTransform(ctx context.Context, b backend.Backend, artifact []byte, o options) ([]byte, string, error) {
	tr := o.transformImpl
	name := o.transform
	if tr == nil && name == "" {
		return artifact, "", nil
	}

	var err error
	if tr == nil {
		tr, err = backend.LookupTransform(b, name)
	} else {
		name = tr.Name()
	}
	var out []byte
	if err == nil {
		out, err = tr.Apply(ctx, artifact)
	}
	if err != nil {
		if o.requireTransform {
			return nil, "", fmt.Errorf("failed to apply transform %q: %w", name, err)
		}
		o.logger.Warn("transform skipped, keeping untransformed artifact",
			"platform", b.Platform(),
			"transform", name,
			"error", err)
		return artifact, "", nil
	}

	o.logger.Debug("transform applied", "transform", name, "before", len(artifact), "after", len(out))
	return out, name, nil
}

// checkFree returns PathExistsError when anything exists at path.
func checkFree(path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return &PathExistsError{Path: path}
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("failed to check package path: %w", err)
	}
}

// stagingPath returns a unique hidden sibling of path.
func stagingPath(path string) string {
	clean := filepath.Clean(path)
	return filepath.Join(filepath.Dir(clean), "."+filepath.Base(clean)+".staging-"+uuid.NewString())
}
