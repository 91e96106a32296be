// Package config loads parcel settings from defaults, a YAML file,
// PARCEL_ environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/born-ml/parcel/internal/pack"
)

// EnvPrefix prefixes every environment variable read by Load. Nested keys
// use a double underscore: PARCEL_LOG__LEVEL sets log.level.
const EnvPrefix = "PARCEL_"

// FileNames are searched in the working directory when no config file is
// given explicitly.
var FileNames = []string{"parcel.yaml", "parcel.yml"}

// Settings is the full parcel configuration.
type Settings struct {
	Packaging Packaging `koanf:"packaging"`
	Inference Inference `koanf:"inference"`
	Catalog   Catalog   `koanf:"catalog"`
	Log       Log       `koanf:"log"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// Packaging controls Create and Verify.
type Packaging struct {
	Transform        string  `koanf:"transform"`
	RequireTransform bool    `koanf:"require_transform"`
	Tolerance        float64 `koanf:"tolerance"`
}

// Inference controls Infer.
type Inference struct {
	AllowExtraInputs bool `koanf:"allow_extra_inputs"`
}

// Catalog controls the package catalog.
type Catalog struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Log controls the process logger.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// flagKeys maps command-line flag names to config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"transform":          "packaging.transform",
	"require-transform":  "packaging.require_transform",
	"tolerance":          "packaging.tolerance",
	"allow-extra-inputs": "inference.allow_extra_inputs",
	"catalog":            "catalog.path",
	"log-level":          "log.level",
	"log-format":         "log.format",
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"packaging.transform":          "",
		"packaging.require_transform":  false,
		"packaging.tolerance":          0.0,
		"inference.allow_extra_inputs": false,
		"catalog.enabled":              true,
		"catalog.path":                 DefaultCatalogPath(),
		"log.level":                    "info",
		"log.format":                   "text",
	}
}

// DefaultCatalogPath returns the catalog database under the user config
// directory, or under .parcel in the working directory when there is none.
func DefaultCatalogPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".parcel", "catalog.db")
	}
	return filepath.Join(dir, "parcel", "catalog.db")
}

// Load builds Settings. cfgFile names a config file that must exist; when
// empty, the first of FileNames found in the working directory is used.
// flags may be nil; only flags that were set explicitly are applied.
func Load(cfgFile string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used, err := findConfigFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	s.File = used

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// envKey turns PARCEL_PACKAGING__TOLERANCE into packaging.tolerance.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", nil
}

// Validate checks value ranges and enumerations.
func (s *Settings) Validate() error {
	var errs []error
	if s.Packaging.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("packaging.tolerance must not be negative, got %v", s.Packaging.Tolerance))
	}
	if s.Packaging.RequireTransform && s.Packaging.Transform == "" {
		errs = append(errs, errors.New("packaging.require_transform needs packaging.transform"))
	}
	if _, err := parseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", s.Log.Format))
	}
	if s.Catalog.Enabled && s.Catalog.Path == "" {
		errs = append(errs, errors.New("catalog.path is empty"))
	}
	return errors.Join(errs...)
}

// PackOptions translates the settings into pack options.
func (s *Settings) PackOptions() []pack.Option {
	opts := []pack.Option{
		pack.WithTolerance(s.Packaging.Tolerance),
		pack.WithRequireTransform(s.Packaging.RequireTransform),
		pack.WithAllowExtraInputs(s.Inference.AllowExtraInputs),
	}
	if s.Packaging.Transform != "" {
		opts = append(opts, pack.WithTransform(s.Packaging.Transform))
	}
	return opts
}

// NewLogger builds a logger writing to w according to the log settings.
func (l Log) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
