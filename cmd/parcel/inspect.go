package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/parcel/internal/pack"
	"github.com/born-ml/parcel/internal/spec"
)

// inspection is what inspect reports about one package.
type inspection struct {
	Path       string            `json:"path"`
	ModelName  string            `json:"model_name,omitempty"`
	Platform   string            `json:"platform,omitempty"`
	Versions   []int             `json:"versions,omitempty"`
	Loaded     int               `json:"loaded_version"`
	InputSpec  []spec.TensorSpec `json:"input_spec,omitempty"`
	OutputSpec []spec.TensorSpec `json:"output_spec,omitempty"`
	InitOps    []string          `json:"init_op_names,omitempty"`
	Transform  string            `json:"transform,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	var (
		output string
		jobs   int
	)

	cmd := &cobra.Command{
		Use:   "inspect <package>...",
		Short: "Load packages and describe them",
		Long: `Inspect loads every given package, which checks its configs, its
artifact and that every mapped identifier resolves, and prints what it
found. Packages are loaded concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}

			loader := pack.NewLoader(a.registry, a.packOptions()...)
			results := make([]inspection, len(args))

			var g errgroup.Group
			g.SetLimit(max(jobs, 1))
			for i, path := range args {
				g.Go(func() error {
					results[i] = inspect(cmd.Context(), loader, path)
					return nil
				})
			}
			_ = g.Wait()

			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}

			if output == formatJSON {
				if err := renderJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				renderInspections(cmd, results)
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d packages failed to load", pack.ErrCorruptPackage, failed, len(args))
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&output, "output", "o", formatTable, "output format: table or json")
	fl.IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "packages loaded at the same time")

	return cmd
}

func inspect(ctx context.Context, loader *pack.Loader, path string) inspection {
	r := inspection{Path: path, Loaded: -1}

	if versions, err := pack.Versions(path); err == nil {
		r.Versions = versions
	}
	cfg, err := pack.ReadConfig(path)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.ModelName = cfg.ModelName
	r.Platform = cfg.Platform
	r.InputSpec = cfg.InputSpec
	r.OutputSpec = cfg.OutputSpec

	m, err := loader.Load(ctx, path)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	defer func() { _ = m.Close() }()

	r.Loaded = m.Version()
	r.InitOps = m.BackendConfig().InitOpNames
	r.Transform = m.BackendConfig().Options["transform"]
	return r
}

func renderInspections(cmd *cobra.Command, results []inspection) {
	t := newTable(cmd.OutOrStdout(), "PATH", "MODEL", "PLATFORM", "VERSIONS", "INPUTS", "OUTPUTS", "STATUS")
	for _, r := range results {
		versions := make([]string, len(r.Versions))
		for i, v := range r.Versions {
			versions[i] = fmt.Sprint(v)
		}
		status := "ok"
		if r.Error != "" {
			status = r.Error
		} else if r.Transform != "" {
			status = "ok (" + r.Transform + ")"
		}
		t.AppendRow([]any{
			r.Path, r.ModelName, r.Platform, strings.Join(versions, ","),
			formatSpecs(r.InputSpec), formatSpecs(r.OutputSpec), status,
		})
	}
	t.Render()
}
