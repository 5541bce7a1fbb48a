package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Build the probe target now and report whether the feature is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := c.app.Probe(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (target %s): %s\n", result.Feature, result.Target, result.Outcome)
			return err
		},
	}
}
