package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [target|shortcut...]",
		Short: "Report which targets are out of date without building",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.app.Check(cmd.Context(), args)
			if err != nil {
				return err
			}
			writeReport(cmd.OutOrStdout(), report)
			if report.OutOfDate() {
				return domain.ErrOutOfDate
			}
			return nil
		},
	}
}

// writeReport prints one line per target and one indented line per step that would run.
func writeReport(w io.Writer, report domain.CheckReport) {
	out := output.New(w)
	green := out.Color(string(style.Green))
	red := out.Color(string(style.Red))
	slate := out.Color(string(style.Slate))

	stale := 0
	for _, target := range report.Targets {
		if !target.Stale() {
			_, _ = fmt.Fprintf(w, "%s %s\n", out.String(style.Check).Foreground(green), target.Target)
			continue
		}

		stale++
		_, _ = fmt.Fprintf(w, "%s %s\n", out.String(style.Cross).Foreground(red), target.Target)
		for _, step := range target.Steps {
			_, _ = fmt.Fprintf(w, "    %s %s\n",
				report.Layout.Rel(step.Action.Output),
				out.String("("+string(step.Reason)+")").Foreground(slate),
			)
		}
	}

	if report.Probe != domain.ProbeUnknown {
		_, _ = fmt.Fprintf(w, "probe: %s\n", report.Probe)
	}
	if stale == 0 {
		_, _ = fmt.Fprintln(w, "everything is up to date")
		return
	}
	_, _ = fmt.Fprintf(w, "%d of %d targets out of date\n", stale, len(report.Targets))
}
