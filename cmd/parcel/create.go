package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/catalog"
	"github.com/born-ml/parcel/internal/pack"
)

type createFlags struct {
	model     string
	manifest  string
	platform  string
	testInput string
	expected  string
	name      string
}

func newCreateCmd(a *app) *cobra.Command {
	var f createFlags

	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a package from a model file and a manifest",
		Long: `Create writes a new package at <path>. The model file is a graph
artifact (.pgraph), a YAML graph (.yaml) or a Starlark script (.star); the
manifest declares the model name, tensor specs and node name mapping.

With --test-input the package is loaded and run once before it is moved
into place; with --expected the outputs must match as well. A package that
fails verification is never left on disk.

Example:
  parcel create models/adder --model adder.yaml --manifest adder.manifest.yaml \
      --test-input in.json --expected out.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCreate(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.model, "model", "", "model file (required)")
	fl.StringVar(&f.manifest, "manifest", "", "package manifest YAML (required)")
	fl.StringVar(&f.platform, "platform", "", "platform (default: manifest, then model file extension)")
	fl.StringVar(&f.name, "name", "", "model name (default: manifest)")
	fl.StringVar(&f.testInput, "test-input", "", "JSON test inputs run before the package is accepted")
	fl.StringVar(&f.expected, "expected", "", "JSON expected outputs of the test inputs")
	fl.String("transform", "", "artifact transform to apply, e.g. fold")
	fl.Bool("require-transform", false, "fail when the transform cannot be applied")
	fl.Float64("tolerance", 0, "absolute tolerance for float outputs during verification")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func (a *app) runCreate(cmd *cobra.Command, path string, f createFlags) error {
	m, err := readManifest(f.manifest)
	if err != nil {
		return err
	}

	platform := f.platform
	if platform == "" {
		platform = m.Platform
	}
	if platform == "" {
		if platform, err = platformFor(f.model); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
	}
	name := f.name
	if name == "" {
		name = m.ModelName
	}

	params := pack.CreateParams{
		ModelName:       name,
		Platform:        platform,
		NodeNameMapping: m.NodeNameMapping,
		InputSpec:       m.InputSpec,
		OutputSpec:      m.OutputSpec,
		Source:          backend.Source{Path: f.model},
		InitOpNames:     m.InitOpNames,
		Options:         m.Options,
	}
	if f.testInput != "" {
		if params.TestInput, err = readTensors(f.testInput, cmd.InOrStdin(), m.InputSpec); err != nil {
			return err
		}
	}
	if f.expected != "" {
		if params.ExpectedOutput, err = readTensors(f.expected, cmd.InOrStdin(), m.OutputSpec); err != nil {
			return err
		}
	}

	pkg, err := pack.Create(cmd.Context(), path, params, a.packOptions()...)
	if err != nil {
		return err
	}

	if err := a.record(cmd, pkg); err != nil {
		a.logger.Warn("package created but not recorded in the catalog", "path", path, "error", err)
	}

	transform := pkg.BackendConfig.Options["transform"]
	if transform == "" {
		transform = "none"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (model %s, platform %s, transform %s, verified %t)\n",
		pkg.Path, pkg.Config.ModelName, pkg.Config.Platform, transform, pkg.Verified)
	return nil
}

// record stores pkg in the catalog when it is enabled.
func (a *app) record(cmd *cobra.Command, pkg *pack.Package) error {
	store, err := a.openCatalog()
	if err != nil || store == nil {
		return err
	}
	defer func() { _ = store.Close() }()

	_, err = store.Record(cmd.Context(), catalog.Entry{
		Path:      pkg.Path,
		ModelName: pkg.Config.ModelName,
		Platform:  pkg.Config.Platform,
		Version:   pkg.Version,
		Verified:  pkg.Verified,
		Transform: pkg.BackendConfig.Options["transform"],
	})
	return err
}
