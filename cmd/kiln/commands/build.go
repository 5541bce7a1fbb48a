package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [target|shortcut...]",
		Short: "Build targets, all of them when none are given",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Build(cmd.Context(), args, buildOptions(cmd))
			return err
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Rebuild every step, ignoring up to date outputs")
	addJobsFlag(cmd)
	return cmd
}

func (c *CLI) newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Clean, then build every target from scratch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := c.app.Rebuild(cmd.Context(), buildOptions(cmd))
			return err
		},
	}
	addJobsFlag(cmd)
	return cmd
}

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [target|shortcut...]",
		Short: "Build, then rebuild targets whenever their sources change",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Watch(cmd.Context(), args, buildOptions(cmd))
		},
	}
	addJobsFlag(cmd)
	return cmd
}

func addJobsFlag(cmd *cobra.Command) {
	cmd.Flags().IntP("jobs", "j", 1, "Number of targets to build in parallel")
}

func buildOptions(cmd *cobra.Command) app.BuildOptions {
	var opts app.BuildOptions
	if f := cmd.Flags().Lookup("force"); f != nil {
		opts.Force, _ = cmd.Flags().GetBool("force")
	}
	opts.Jobs, _ = cmd.Flags().GetInt("jobs")
	return opts
}
