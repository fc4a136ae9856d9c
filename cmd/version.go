package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rosterkit/rosterkit/internal/build"
)

// NewVersionCommand returns the command to get the rosterkit version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Return the rosterkit version",
		Long:  "Return the rosterkit version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rosterkit version %s date %s commit id %s\n", build.Version, build.Date, build.Commit)
			return nil
		},
	}
}
