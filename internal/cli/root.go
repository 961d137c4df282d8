package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcheck/internal/config"
	"github.com/roach88/shopcheck/internal/target"
)

// FactoryBuilder opens the browser a run drives.
type FactoryBuilder func(ctx context.Context, cfg config.Config, install bool, logger *slog.Logger) (target.Factory, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string

	// Getenv reads configuration variables. Defaults to os.Getenv.
	Getenv func(string) string

	// NewFactory opens the browser for run. Defaults to the configured
	// playwright or cdp driver.
	NewFactory FactoryBuilder

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Logger returns the logger configured for the current command.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// NewRootCommand creates the root command for the shopcheck CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		Getenv:     os.Getenv,
		NewFactory: newBrowserFactory,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.NewFactory == nil {
		opts.NewFactory = newBrowserFactory
	}

	cmd := &cobra.Command{
		Use:   "shopcheck",
		Short: "shopcheck - browser test suites for web shops",
		Long: `Run declarative browser test suites against a web shop.

Suites are YAML files of cases: ordered actions (navigate, fill, click,
select) and web-first assertions (url, text, visible, hidden, count,
order). Without suite paths the bundled SauceDemo suites are used.

Configuration comes from SHOPCHECK_* environment variables, an optional
.env file, and flags, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.EnvFile != "" {
				if err := config.LoadDotEnv(opts.EnvFile); err != nil {
					return WrapExitError(ExitCommandError, "load env file", err)
				}
			}

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load if present")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors already reported by a command are not printed again.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	return execute(ctx, cmd, args, stdout, stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.reported {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}
