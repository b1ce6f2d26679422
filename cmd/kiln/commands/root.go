// Package commands implements the CLI commands for the kiln build tool.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/adapters/detector"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
	"go.trai.ch/kiln/internal/core/domain"
)

// CLI represents the command line interface for kiln.
type CLI struct {
	app     Application
	log     LogSwitch
	rootCmd *cobra.Command

	file     string
	verbose  bool
	jsonLog  bool
	output   string
	detected detector.OutputMode
}

// Application represents the application logic interface.
type Application interface {
	Build(ctx context.Context, opts app.Options) (*domain.BuildReport, error)
	Clean(ctx context.Context, opts app.Options) error
	Rebuild(ctx context.Context, opts app.Options) (*domain.BuildReport, error)
}

// LogSwitch is the part of the logger the global flags control.
type LogSwitch interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// Option configures a CLI.
type Option func(*CLI)

// WithJSONDefault sets the default of --json-log, normally taken from KILN_LOG_JSON.
func WithJSONDefault(enable bool) Option {
	return func(c *CLI) { c.jsonLog = enable }
}

// WithDetectedMode overrides the output mode --output=auto resolves to.
func WithDetectedMode(m detector.OutputMode) Option {
	return func(c *CLI) { c.detected = m }
}

// New creates a new CLI instance with the given app.
func New(a Application, log LogSwitch, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "kiln",
		Short:         "A parallel incremental build tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	c := &CLI{
		app:      a,
		log:      log,
		rootCmd:  rootCmd,
		detected: detector.ModeAuto,
	}
	for _, opt := range opts {
		opt(c)
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&c.file, "file", "f", "", "Use this build file instead of discovering kiln.yaml")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Show debug logs and up-to-date targets")
	pf.BoolVar(&c.jsonLog, "json-log", c.jsonLog, "Write logs and build events as JSON records")
	pf.StringVarP(&c.output, "output", "o", "auto", "Output mode: auto, terminal, ci or plain")

	// Registered after the persistent flags so --version leaves -v to --verbose.
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if c.log != nil {
			c.log.SetJSON(c.jsonLog)
			c.log.SetVerbose(c.verbose)
		}
	}

	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newRebuildCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
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

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// options collects the global flags and the build flags of cmd into app.Options.
func (c *CLI) options(cmd *cobra.Command, targets []string) app.Options {
	opts := app.Options{
		Targets: targets,
		File:    c.file,
		Verbose: c.verbose,
		JSON:    c.jsonLog,
		Output:  cmd.ErrOrStderr(),
	}

	detected := c.detected
	if detected == detector.ModeAuto {
		detected = detector.DetectEnvironment()
	}
	opts.OutputMode = detector.ResolveMode(detected, c.output)

	flags := cmd.Flags()
	opts.Workers, _ = flags.GetInt("workers")
	opts.KeepGoing, _ = flags.GetBool("keep-going")
	opts.DryRun, _ = flags.GetBool("dry-run")
	opts.IgnoreDeps, _ = flags.GetBool("ignore-deps")
	opts.Verify, _ = flags.GetBool("verify")
	opts.RandomPriority, _ = flags.GetBool("random-priority")
	opts.Seed, _ = flags.GetUint64("seed")
	return opts
}

// addBuildFlags registers the flags shared by build and rebuild.
func addBuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("workers", "j", 0, "Number of parallel workers (0 derives it from the CPU count)")
	f.BoolP("keep-going", "k", false, "Keep building independent targets after a failure")
	f.BoolP("dry-run", "n", false, "Report what would be built without running anything")
	f.Bool("ignore-deps", false, "Treat targets whose output exists as up to date")
	f.Bool("verify", false, "Warn about up-to-date targets whose dependencies look inconsistent")
	f.Bool("random-priority", false, "Shuffle the build order of ready targets")
	f.Uint64("seed", 0, "Seed for --random-priority (0 picks one)")
}
