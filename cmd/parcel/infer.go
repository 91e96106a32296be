package main

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/born-ml/parcel/internal/pack"
)

func newInferCmd(a *app) *cobra.Command {
	var (
		input   string
		output  string
		version int
	)

	cmd := &cobra.Command{
		Use:   "infer <package>",
		Short: "Run one inference against a package",
		Long: `Infer loads a package and runs the JSON inputs through it.

Inputs are a JSON object keyed by input name. Each value is either a
(nested) array or scalar, typed by the package's input spec, or an explicit
{"dtype": ..., "shape": [...], "data": [...]} object.

Example:
  echo '{"x": [1, 2], "y": [3, 4]}' | parcel infer models/adder --input -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			path := args[0]

			cfg, err := pack.ReadConfig(path)
			if err != nil {
				return err
			}
			inputs, err := readTensors(input, cmd.InOrStdin(), cfg.InputSpec)
			if err != nil {
				return err
			}

			opts := a.packOptions()
			if cmd.Flags().Changed("package-version") {
				opts = append(opts, pack.WithVersion(version))
			}
			model, err := pack.NewLoader(a.registry, opts...).Load(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer func() { _ = model.Close() }()

			outputs, err := model.Infer(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			if output == formatJSON {
				return renderJSON(cmd.OutOrStdout(), encodeTensors(outputs))
			}
			t := newTable(cmd.OutOrStdout(), "OUTPUT", "DTYPE", "SHAPE", "VALUES")
			names := make([]string, 0, len(outputs))
			for name := range outputs {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				o := outputs[name]
				t.AppendRow([]any{name, o.DType(), o.Shape(), formatValues(o)})
			}
			t.Render()
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&input, "input", "-", `JSON inputs file, "-" for stdin`)
	fl.StringVarP(&output, "output", "o", formatTable, "output format: table or json")
	fl.IntVar(&version, "package-version", 0, "version directory to load (default: highest)")
	fl.Bool("allow-extra-inputs", false, "drop undeclared inputs instead of failing")

	return cmd
}
