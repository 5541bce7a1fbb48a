package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the configured targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listing, err := c.app.Targets(cmd.Context())
			if err != nil {
				return err
			}
			return writeListing(cmd.OutOrStdout(), listing)
		},
	}
}

func writeListing(w io.Writer, listing app.Listing) error {
	aliases := make(map[string][]string)
	for _, shortcut := range slices.Sorted(maps.Keys(listing.Shortcuts)) {
		target := listing.Shortcuts[shortcut]
		aliases[target] = append(aliases[target], shortcut)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TARGET\tOUTPUT\tSOURCES\tSHORTCUTS")
	for _, spec := range listing.Targets {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			spec.Name,
			spec.Output,
			strings.Join(spec.Sources, " "),
			strings.Join(aliases[spec.Name], " "),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if listing.Probe != nil {
		_, _ = fmt.Fprintf(w, "\nprobe %s (target %s): %s\n",
			listing.Probe.Feature, listing.Probe.Target.Name, listing.Outcome)
	}
	return nil
}
