package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/parcel/internal/catalog"
	"github.com/born-ml/parcel/internal/pack"
	"github.com/born-ml/parcel/internal/tensor"
)

func newVerifyCmd(a *app) *cobra.Command {
	var input, expected string

	cmd := &cobra.Command{
		Use:   "verify <package>",
		Short: "Run a verification inference; remove the package if it fails",
		Long: `Verify loads the package, runs the test inputs once and compares the
outputs named in --expected. If loading, inference or the comparison
fails, the whole package directory is deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			cfg, err := pack.ReadConfig(path)
			if err != nil {
				return err
			}

			testInput, err := readTensors(input, cmd.InOrStdin(), cfg.InputSpec)
			if err != nil {
				return err
			}
			var want map[string]*tensor.Tensor
			if expected != "" {
				if want, err = readTensors(expected, cmd.InOrStdin(), cfg.OutputSpec); err != nil {
					return err
				}
			}

			verr := pack.Verify(cmd.Context(), path, testInput, want, a.packOptions()...)
			if err := a.recordVerification(cmd, path, cfg, verr); err != nil {
				a.logger.Warn("catalog not updated", "path", path, "error", err)
			}
			if verr != nil {
				return verr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %s\n", path)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&input, "input", "", "JSON test inputs (required)")
	fl.StringVar(&expected, "expected", "", "JSON expected outputs")
	fl.Float64("tolerance", 0, "absolute tolerance for float outputs")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// recordVerification marks path verified in the catalog, or forgets it
// when verification removed the package.
func (a *app) recordVerification(cmd *cobra.Command, path string, cfg pack.PackageConfig, verr error) error {
	store, err := a.openCatalog()
	if err != nil || store == nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if errors.Is(verr, pack.ErrVerification) {
		return store.Remove(cmd.Context(), path)
	}
	if verr != nil {
		return nil
	}

	entry, err := store.Get(cmd.Context(), path)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		entry = catalog.Entry{Path: path, ModelName: cfg.ModelName, Platform: cfg.Platform}
	case err != nil:
		return err
	}
	entry.Verified = true
	_, err = store.Record(cmd.Context(), entry)
	return err
}
