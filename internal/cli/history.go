package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcheck/internal/config"
	"github.com/roach88/shopcheck/internal/report"
	"github.com/roach88/shopcheck/internal/store"
)

// HistoryOptions holds flags for the history and diff commands.
type HistoryOptions struct {
	*RootOptions
	DB    string
	Limit int
}

// openHistory opens the run history named by --db or SHOPCHECK_DB.
func openHistory(opts *HistoryOptions, cmd *cobra.Command) (*store.Store, error) {
	path := opts.DB
	if !cmd.Flags().Changed("db") {
		cfg, err := config.Load(opts.Getenv)
		if err != nil {
			return nil, err
		}
		path = cfg.DB
	}
	if path == "" {
		return nil, errors.New("no history database: set --db or " + config.EnvPrefix + "DB")
	}
	return store.Open(path)
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in the history database, newest first.

Runs are recorded when run is given --db or SHOPCHECK_DB is set.

Examples:
  shopcheck history --db history.db
  shopcheck history --limit 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	addDBFlag(cmd, &opts.DB)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to show (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openHistory(opts, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to open history", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to read history", err)
	}

	if formatter.JSON() {
		if runs == nil {
			runs = []store.Run{}
		}
		return formatter.Success(runs)
	}
	return report.WriteRuns(formatter.Writer, runs)
}

// DiffResult is the JSON payload of the diff command.
type DiffResult struct {
	Before  string         `json:"before"`
	After   string         `json:"after"`
	Changes []store.Change `json:"changes"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Show cases whose status changed between two runs",
		Long: `Compare the verdicts of two recorded runs.

Runs are named by ID, by a unique ID prefix, or by "latest".

Examples:
  shopcheck diff --db history.db 0192f0c4 latest`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	addDBFlag(cmd, &opts.DB)

	return cmd
}

func runDiff(opts *HistoryOptions, beforeRef, afterRef string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()

	st, err := openHistory(opts, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to open history", err)
	}
	defer st.Close()

	before, err := st.GetRun(ctx, beforeRef)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, fmt.Sprintf("run %q", beforeRef), err)
	}
	after, err := st.GetRun(ctx, afterRef)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, fmt.Sprintf("run %q", afterRef), err)
	}
	formatter.VerboseLog("Comparing %s with %s", before.ID, after.ID)

	changes, err := st.Diff(ctx, before.ID, after.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHistory, "failed to compare runs", err)
	}

	if formatter.JSON() {
		if changes == nil {
			changes = []store.Change{}
		}
		return formatter.Success(DiffResult{Before: before.ID, After: after.ID, Changes: changes})
	}
	return report.WriteChanges(formatter.Writer, before.ID, after.ID, changes)
}
