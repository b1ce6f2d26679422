package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [targets|tag:NAME...]",
		Short: "Remove the outputs and build records of the selected targets",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Clean(cmd.Context(), c.options(cmd, args))
		},
	}
	cmd.Flags().IntP("workers", "j", 0, "Number of parallel workers (0 derives it from the CPU count)")
	cmd.Flags().BoolP("dry-run", "n", false, "List what would be cleaned without removing anything")
	return cmd
}
