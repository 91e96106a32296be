package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var (
		model  string
		prune  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages recorded in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			store, err := a.openCatalog()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("%w: the catalog is disabled", errUsage)
			}
			defer func() { _ = store.Close() }()

			if prune {
				pruned, err := store.Prune(cmd.Context())
				if err != nil {
					return err
				}
				for _, e := range pruned {
					a.logger.Info("pruned missing package", "path", e.Path, "model", e.ModelName)
				}
			}

			entries, err := store.List(cmd.Context(), model)
			if err != nil {
				return err
			}
			if output == formatJSON {
				return renderJSON(cmd.OutOrStdout(), entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no packages)")
				return nil
			}
			t := newTable(cmd.OutOrStdout(), "MODEL", "PLATFORM", "VERIFIED", "TRANSFORM", "CREATED", "PATH")
			for _, e := range entries {
				t.AppendRow([]any{e.ModelName, e.Platform, e.Verified, e.Transform, e.CreatedAt.Local().Format(time.DateTime), e.Path})
			}
			t.Render()
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&model, "model", "", "only list packages of this model")
	fl.BoolVar(&prune, "prune", false, "forget packages whose directory no longer exists")
	fl.StringVarP(&output, "output", "o", formatTable, "output format: table or json")

	return cmd
}
