package pack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/tensor"
)

// Loader opens packages through a fixed backend registry. It holds no
// mutable state and is safe for concurrent use.
type Loader struct {
	opts options
}

// NewLoader creates a loader. A nil registry means the built-in backends.
func NewLoader(registry *backend.Registry, opts ...Option) *Loader {
	if registry != nil {
		opts = append(opts, WithRegistry(registry))
	}
	return &Loader{opts: newOptions(opts)}
}

// Load opens the package at path with the built-in backends.
func Load(ctx context.Context, path string, opts ...Option) (*Model, error) {
	return NewLoader(nil, opts...).Load(ctx, path)
}

// Load opens the package at path, resolves its backend and runs the init
// ops of the selected version once.
func (l *Loader) Load(ctx context.Context, path string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	logger := l.opts.logger

	info, err := os.Stat(path)
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return nil, &NotFoundError{Path: path, Err: errors.New("not a directory")}
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	version, err := resolveVersion(path, l.opts.version)
	if err != nil {
		return nil, err
	}
	vdir := versionDir(path, version)

	bcfg, err := readBackendConfig(path, vdir)
	if err != nil {
		return nil, err
	}
	if missing := missingMappings(bcfg.NodeNameMapping, cfg.InputSpec, cfg.OutputSpec); len(missing) > 0 {
		return nil, &CorruptPackageError{Path: path, Reason: fmt.Sprintf("node name mapping has no entry for %v", missing)}
	}

	b, err := l.opts.registry.New(cfg.Platform, logger)
	if err != nil {
		return nil, &CorruptPackageError{Path: path, Reason: "platform cannot be loaded", Err: err}
	}

	dataDir := filepath.Join(vdir, DataDirName)
	if _, err := os.Stat(filepath.Join(dataDir, b.ArtifactName())); err != nil {
		return nil, &CorruptPackageError{Path: path, Reason: "missing model artifact", Err: err}
	}

	req := backend.LoadRequest{
		DataDir: dataDir,
		Mapping: bcfg.NodeNameMapping,
		Inputs:  make(map[string]tensor.DataType, len(cfg.InputSpec)),
		Outputs: make(map[string]tensor.DataType, len(cfg.OutputSpec)),
		InitOps: bcfg.InitOpNames,
		Options: bcfg.Options,
		Logger:  logger,
	}
	for _, s := range cfg.InputSpec {
		req.Inputs[bcfg.NodeNameMapping[s.Name]] = s.DType
	}
	for _, s := range cfg.OutputSpec {
		req.Outputs[bcfg.NodeNameMapping[s.Name]] = s.DType
	}

	sess, err := b.Load(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &CorruptPackageError{Path: path, Reason: "backend failed to load the model", Err: err}
	}

	logger.Info("package loaded",
		"path", path,
		"model", cfg.ModelName,
		"platform", cfg.Platform,
		"version", version,
		"init_ops", len(bcfg.InitOpNames),
		"duration", time.Since(start))

	return &Model{
		path:             path,
		version:          version,
		config:           cfg,
		backendConfig:    bcfg,
		session:          sess,
		allowExtraInputs: l.opts.allowExtraInputs,
		logger:           logger,
	}, nil
}

// resolveVersion picks the version directory to load: want when it is not
// latestVersion, the highest numbered directory otherwise.
func resolveVersion(root string, want int) (int, error) {
	if want != latestVersion {
		dir := versionDir(root, want)
		info, err := os.Stat(dir)
		if err != nil {
			return 0, &NotFoundError{Path: dir, Err: err}
		}
		if !info.IsDir() {
			return 0, &NotFoundError{Path: dir, Err: fs.ErrNotExist}
		}
		return want, nil
	}

	versions, err := Versions(root)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, &CorruptPackageError{Path: root, Reason: "no version directory"}
	}
	return versions[len(versions)-1], nil
}

// Versions lists the numbered version directories of the package at root
// in ascending order.
func Versions(root string) ([]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &NotFoundError{Path: root, Err: err}
	}
	var versions []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil || n < 0 || strconv.Itoa(n) != e.Name() {
			continue
		}
		versions = append(versions, n)
	}
	// os.ReadDir sorts by name, which is not numeric order.
	slices.Sort(versions)
	return versions, nil
}
