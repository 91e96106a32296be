package pack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/parcel/internal/spec"
)

// Layout names inside a package.
const (
	ConfigFileName = "config"
	DataDirName    = "data"
)

// FormatVersion is the newest package format this build reads and the one
// it writes.
const FormatVersion = 1

// writeVersion is the version directory Create writes.
const writeVersion = 0

// PackageConfig is the top-level, backend-independent package config.
type PackageConfig struct {
	FormatVersion int               `json:"format_version"`
	ModelName     string            `json:"model_name"`
	Platform      string            `json:"platform"`
	InputSpec     []spec.TensorSpec `json:"input_spec"`
	OutputSpec    []spec.TensorSpec `json:"output_spec"`
}

// BackendConfig is stored next to the data directory of each version.
type BackendConfig struct {
	NodeNameMapping map[string]string `json:"node_name_mapping"`
	InitOpNames     InitOps           `json:"init_op_names,omitempty"`
	Options         map[string]string `json:"options,omitempty"`
}

// InitOps is an ordered list of init op identifiers. It decodes from
// either a JSON list or a single JSON string.
type InitOps []string

// UnmarshalJSON accepts null, a string or a list of strings.
func (o *InitOps) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*o = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		if name == "" {
			*o = nil
			return nil
		}
		*o = InitOps{name}
		return nil
	default:
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("init_op_names must be a string or a list of strings: %w", err)
		}
		*o = names
		return nil
	}
}

// versionDir returns the directory of version n inside root.
func versionDir(root string, n int) string {
	return filepath.Join(root, strconv.Itoa(n))
}

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: package files are meant to be shared
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadConfig reads and validates the top-level config of the package at
// root without loading any backend.
func ReadConfig(root string) (PackageConfig, error) {
	path := filepath.Join(root, ConfigFileName)
	//nolint:gosec // G304: package path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return PackageConfig{}, &NotFoundError{Path: path, Err: err}
	}

	var cfg PackageConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return PackageConfig{}, &CorruptPackageError{Path: root, Reason: "unparseable config", Err: err}
	}
	switch {
	case cfg.FormatVersion < 1 || cfg.FormatVersion > FormatVersion:
		return PackageConfig{}, &CorruptPackageError{
			Path:   root,
			Reason: fmt.Sprintf("unsupported format_version %d (this build reads up to %d)", cfg.FormatVersion, FormatVersion),
		}
	case cfg.ModelName == "":
		return PackageConfig{}, &CorruptPackageError{Path: root, Reason: "config has no model_name"}
	case cfg.Platform == "":
		return PackageConfig{}, &CorruptPackageError{Path: root, Reason: "config has no platform"}
	}
	if err := spec.Validate(cfg.InputSpec, cfg.OutputSpec); err != nil {
		return PackageConfig{}, &CorruptPackageError{Path: root, Reason: "invalid tensor specs", Err: err}
	}
	return cfg, nil
}

// readBackendConfig reads the backend config of the version directory dir.
func readBackendConfig(root, dir string) (BackendConfig, error) {
	path := filepath.Join(dir, ConfigFileName)
	//nolint:gosec // G304: package path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return BackendConfig{}, &CorruptPackageError{Path: root, Reason: "missing backend config", Err: err}
	}
	var cfg BackendConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return BackendConfig{}, &CorruptPackageError{Path: root, Reason: "unparseable backend config", Err: err}
	}
	return cfg, nil
}

// missingMappings returns the declared names without a mapping entry.
func missingMappings(mapping map[string]string, lists ...[]spec.TensorSpec) []string {
	var missing []string
	for _, list := range lists {
		for _, s := range list {
			if id, ok := mapping[s.Name]; !ok || id == "" {
				missing = append(missing, s.Name)
			}
		}
	}
	return missing
}
