package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/parcel/internal/pack"
)

const version = "v0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the parcel version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "parcel %s (package format %d)\n", version, pack.FormatVersion)
		},
	}
}
