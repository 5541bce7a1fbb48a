// Package commands implements the CLI commands for the kiln build tool.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
	"go.trai.ch/kiln/internal/core/domain"
)

// Application represents the application logic interface.
type Application interface {
	UseConfig(path string)
	Build(ctx context.Context, names []string, opts app.BuildOptions) ([]domain.TargetResult, error)
	Check(ctx context.Context, names []string) (domain.CheckReport, error)
	Clean(ctx context.Context) error
	Rebuild(ctx context.Context, opts app.BuildOptions) ([]domain.TargetResult, error)
	Watch(ctx context.Context, names []string, opts app.BuildOptions) error
	Targets(ctx context.Context) (app.Listing, error)
	Probe(ctx context.Context) (app.ProbeResult, error)
}

// LogSettings is implemented by loggers that honour --verbose and --json.
type LogSettings interface {
	SetVerbose(enable bool)
	SetJSON(enable bool)
}

// CLI represents the command line interface for kiln.
type CLI struct {
	app     Application
	logs    LogSettings
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app. logs may be nil.
func New(a Application, logs LogSettings) *CLI {
	rootCmd := &cobra.Command{
		Use:           "kiln",
		Short:         "Incremental builds for small C projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to "+domain.ConfigFileName+" or a directory to search from")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print debug output, including why each step runs")
	rootCmd.PersistentFlags().Bool("json", false, "Log as JSON")

	c := &CLI{
		app:     a,
		logs:    logs,
		rootCmd: rootCmd,
	}
	rootCmd.PersistentPreRun = c.configure

	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newRebuildCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newTargetsCmd())
	rootCmd.AddCommand(c.newProbeCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

func (c *CLI) configure(cmd *cobra.Command, _ []string) {
	config, _ := cmd.Flags().GetString("config")
	c.app.UseConfig(config)

	if c.logs == nil {
		return
	}
	// Unset flags keep the modes the logger started with.
	if cmd.Flags().Changed("verbose") {
		verbose, _ := cmd.Flags().GetBool("verbose")
		c.logs.SetVerbose(verbose)
	}
	if cmd.Flags().Changed("json") {
		jsonLogs, _ := cmd.Flags().GetBool("json")
		c.logs.SetJSON(jsonLogs)
	}
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error writers for the root command.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
