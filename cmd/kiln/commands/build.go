package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [targets|tag:NAME...]",
		Short: "Bring the selected targets up to date",
		Long: "Build the selected targets and everything they depend on. " +
			"Without arguments every target in the build file is selected.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Build(cmd.Context(), c.options(cmd, args))
			return err
		},
	}
	addBuildFlags(cmd)
	return cmd
}

func (c *CLI) newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild [targets|tag:NAME...]",
		Short: "Clean the selected targets, then build them from scratch",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Rebuild(cmd.Context(), c.options(cmd, args))
			return err
		},
	}
	addBuildFlags(cmd)
	return cmd
}
