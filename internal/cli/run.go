package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcheck/internal/config"
	"github.com/roach88/shopcheck/internal/harness"
	"github.com/roach88/shopcheck/internal/report"
	"github.com/roach88/shopcheck/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	SelectOptions
	BrowserFlags

	NoProgress bool
	Install    bool
}

// SelectOptions narrows the suites and cases a command works on.
type SelectOptions struct {
	Names []string
	Tags  []string
}

func (o SelectOptions) selector() harness.Selector {
	return harness.Selector{Names: o.Names, Tags: o.Tags}
}

func addSelectFlags(cmd *cobra.Command, o *SelectOptions) {
	cmd.Flags().StringSliceVar(&o.Names, "filter", nil, `select suites or cases by glob on "suite" or "suite/case" (repeatable)`)
	cmd.Flags().StringSliceVar(&o.Tags, "tag", nil, "select suites or cases carrying a tag (repeatable)")
}

// BrowserFlags override configuration values for a run.
type BrowserFlags struct {
	BaseURL    string
	Driver     string
	Browser    string
	RemoteURL  string
	Headless   bool
	Timeout    time.Duration
	AssertWait time.Duration
	Parallel   int
	DB         string
}

func addBrowserFlags(cmd *cobra.Command, f *BrowserFlags) {
	d := config.Default()
	cmd.Flags().StringVar(&f.BaseURL, "base-url", d.BaseURL, "shop base URL relative steps resolve against")
	cmd.Flags().StringVar(&f.Driver, "driver", d.Driver, "browser driver (playwright|cdp)")
	cmd.Flags().StringVar(&f.Browser, "browser", d.Browser, "browser for the playwright driver (chromium|firefox|webkit)")
	cmd.Flags().StringVar(&f.RemoteURL, "remote-url", "", "DevTools websocket URL of a running browser (cdp driver)")
	cmd.Flags().BoolVar(&f.Headless, "headless", d.Headless, "run the browser without a window")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", d.Timeout, "bound on every single action and read")
	cmd.Flags().DurationVar(&f.AssertWait, "assert-wait", d.AssertWait, "how long assertions retry before failing (0 checks once)")
	cmd.Flags().IntVarP(&f.Parallel, "parallel", "p", d.Parallel, "cases to run at once")
	addDBFlag(cmd, &f.DB)
}

func addDBFlag(cmd *cobra.Command, db *string) {
	cmd.Flags().StringVar(db, "db", "", "run history database (SQLite)")
}

// apply copies the flags the user set onto cfg.
func (f *BrowserFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = f.BaseURL
	}
	if flags.Changed("driver") {
		cfg.Driver = f.Driver
	}
	if flags.Changed("browser") {
		cfg.Browser = f.Browser
	}
	if flags.Changed("remote-url") {
		cfg.RemoteURL = f.RemoteURL
	}
	if flags.Changed("headless") {
		cfg.Headless = f.Headless
	}
	if flags.Changed("timeout") {
		cfg.Timeout = f.Timeout
	}
	if flags.Changed("assert-wait") {
		cfg.AssertWait = f.AssertWait
	}
	if flags.Changed("parallel") {
		cfg.Parallel = f.Parallel
	}
	if flags.Changed("db") {
		cfg.DB = f.DB
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [suite-file-or-dir...]",
		Short: "Run suites against the shop",
		Long: `Run suites against the shop in a real browser.

Every case gets a fresh, isolated browser context. The suite's setup
steps run before each case, then the case steps run in order and the
case stops at its first failure. Without paths the bundled SauceDemo
suites run.

Exit codes:
  0 - All selected cases passed
  1 - One or more cases failed or errored
  2 - Command error (invalid flags or paths, browser unavailable,
      infrastructure failure during the run)

Examples:
  shopcheck run
  shopcheck run --tag smoke --parallel 4
  shopcheck run ./suites --filter "SauceDemo - Checkout*"
  shopcheck run --driver cdp --remote-url ws://127.0.0.1:9222/devtools/browser/<id>
  shopcheck run --db history.db --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd.Context(), opts, args, cmd)
		},
	}

	addSelectFlags(cmd, &opts.SelectOptions)
	addBrowserFlags(cmd, &opts.BrowserFlags)
	cmd.Flags().BoolVar(&opts.NoProgress, "no-progress", false, "do not draw the progress bar")
	cmd.Flags().BoolVar(&opts.Install, "install", false, "download the playwright driver and browser first")

	return cmd
}

// loadConfig reads the environment and overlays the command's flags.
func loadConfig(opts *RootOptions, cmd *cobra.Command, flags *BrowserFlags) (config.Config, error) {
	cfg, err := config.Load(opts.Getenv)
	if err != nil {
		return config.Config{}, err
	}
	flags.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runSuites(ctx context.Context, opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.Logger()

	cfg, err := loadConfig(opts.RootOptions, cmd, &opts.BrowserFlags)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	base, _ := cfg.ParseBaseURL()

	sel := opts.selector()
	if err := sel.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid selection", err)
	}

	loaded, errs := LoadSuites(paths, LoadModeFailFast)
	if len(errs) > 0 {
		return failLoad(formatter, errs[0])
	}
	selected := loaded.Registry.Select(sel)
	cases := 0
	for _, s := range selected {
		cases += len(s.Cases)
	}
	if cases == 0 {
		if formatter.JSON() {
			return formatter.Success(&harness.Report{Suites: []harness.SuiteSummary{}})
		}
		fmt.Fprintln(formatter.Writer, "No cases matched the selection.")
		return nil
	}
	formatter.VerboseLog("Running %d case(s) from %d suite(s) with driver %s", cases, len(selected), cfg.Driver)

	factory, err := opts.NewFactory(ctx, cfg, opts.Install, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBrowser, "failed to start browser", err)
	}
	defer func() {
		if err := factory.Close(); err != nil {
			logger.Warn("close browser", "error", err)
		}
	}()

	runnerOpts := []harness.Option{
		harness.WithBaseURL(base),
		harness.WithParallel(cfg.Parallel),
		harness.WithStepTimeout(cfg.Timeout),
		harness.WithAssertWait(cfg.AssertWait),
		harness.WithLogger(logger),
	}
	if !formatter.JSON() && !opts.NoProgress {
		runnerOpts = append(runnerOpts, harness.WithObserver(report.NewProgress(cmd.ErrOrStderr())))
	}
	runner := harness.NewRunner(factory, runnerOpts...)

	rep, runErr := runner.Run(ctx, selected)
	if rep == nil {
		return formatter.Fail(ExitCommandError, ErrCodeInfra, "run failed", runErr)
	}

	if cfg.DB != "" {
		meta := store.RunMeta{Selector: sel.String(), Driver: cfg.Driver, BaseURL: cfg.BaseURL}
		if err := saveRun(context.WithoutCancel(ctx), cfg.DB, rep, meta); err != nil {
			logger.Error("save run history", "db", cfg.DB, "error", err)
			formatter.VerboseLog("Could not save run %s: %v", rep.RunID, err)
		} else {
			formatter.VerboseLog("Saved run %s to %s", rep.RunID, cfg.DB)
		}
	}

	return outputRun(formatter, rep, runErr)
}

func saveRun(ctx context.Context, path string, rep *harness.Report, meta store.RunMeta) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.WriteRun(ctx, rep, meta)
}

func outputRun(f *OutputFormatter, rep *harness.Report, runErr error) error {
	infra := harness.IsInfrastructure(runErr)
	failed := rep.Totals.ExitCode != 0

	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: rep}
		switch {
		case infra:
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeInfra, Message: runErr.Error()}
		case failed:
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeCasesFailed, Message: casesFailedMessage(rep.Totals)}
		}
		if err := report.WriteJSON(f.Writer, resp); err != nil {
			return err
		}
	} else {
		if err := report.WriteText(f.Writer, rep, report.TextOptions{Verbose: f.Verbose}); err != nil {
			return err
		}
		if infra {
			fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %v\n", ErrCodeInfra, runErr)
		}
	}

	switch {
	case infra:
		return &ExitError{Code: ExitCommandError, Message: "run aborted", Err: runErr, reported: true}
	case failed:
		return &ExitError{Code: ExitFailure, Message: casesFailedMessage(rep.Totals), reported: true}
	default:
		return nil
	}
}

func casesFailedMessage(t harness.Totals) string {
	return fmt.Sprintf("%d of %d case(s) did not pass", t.Failed+t.Errored, t.Total)
}

func failLoad(f *OutputFormatter, err error) error {
	code := ErrCodeInvalidSuite
	var le *LoadError
	if errors.As(err, &le) {
		code = le.Code
	}
	return f.Fail(ExitCommandError, code, "failed to load suites", err)
}
