package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retrofeed/retrofeed/internal/catalog"
	"github.com/retrofeed/retrofeed/internal/changefeed"
	"github.com/retrofeed/retrofeed/internal/config"
	"github.com/retrofeed/retrofeed/internal/reconcile"
	"github.com/retrofeed/retrofeed/internal/store"
)

// TrackOptions holds flags for the track command.
type TrackOptions struct {
	*RootOptions
	Tables     []string
	ConfigPath string
	NoIndex    bool
	DryRun     bool

	// Tokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7.
	Tokens reconcile.RunTokenGenerator
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "track <database>",
		Short: "Install or reconcile changefeed triggers",
		Long: `Install the changefeed table, view, and per-table triggers on a SQLite
database, or reconcile them after a schema change.

By default every user table is tracked. Restrict the set with repeated
--table flags or a YAML config file. Re-running against an unchanged
schema is a no-op: every trigger reports "unchanged" and no DDL runs.

Example:
  retrofeed track ./app.db
  retrofeed track ./app.db --table post --table comment
  retrofeed track ./app.db --config retrofeed.yaml --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Tables, "table", nil, "track only this table (repeatable)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML run config")
	cmd.Flags().BoolVar(&opts.NoIndex, "no-index", false, "skip changefeed query indices")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without applying DDL")

	return cmd
}

func runTrack(opts *TrackOptions, dbPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tables := opts.Tables
	autoindex := !opts.NoIndex
	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		// Flags win over the file.
		if len(tables) == 0 {
			tables = cfg.Tables
		}
		if !opts.NoIndex {
			autoindex = cfg.AutoindexEnabled()
		}
	}

	slog.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// Validate the table filter before any mutation: an unknown table
	// must abort with zero DDL applied.
	tracked, err := catalog.ListTables(ctx, st.DB(), tables)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read catalog", err)
	}
	slog.Info("catalog read", "tables", len(tracked))

	rec := reconcile.New(st.DB(), opts.Tokens)

	var report *reconcile.Report
	if opts.DryRun {
		report, err = rec.Plan(ctx, tracked)
	} else {
		if err := changefeed.EnsureSchema(ctx, st.DB(), changefeed.Options{Autoindex: autoindex}); err != nil {
			return WrapExitError(ExitFailure, "failed to ensure changefeed schema", err)
		}
		report, err = rec.Apply(ctx, tracked)
	}
	if err != nil {
		printReport(opts, cmd, report)
		return WrapExitError(ExitFailure, "reconciliation failed", err)
	}

	printReport(opts, cmd, report)
	return nil
}

func printReport(opts *TrackOptions, cmd *cobra.Command, report *reconcile.Report) {
	if report == nil {
		return
	}
	out := cmd.OutOrStdout()

	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	byTable := map[string][]reconcile.Entry{}
	var order []string
	for _, e := range report.Entries {
		if _, seen := byTable[e.Table]; !seen {
			order = append(order, e.Table)
		}
		byTable[e.Table] = append(byTable[e.Table], e)
	}
	for _, table := range order {
		var parts []string
		for _, e := range byTable[table] {
			parts = append(parts, fmt.Sprintf("%s %s", e.Type, e.Action))
		}
		fmt.Fprintf(out, "%s: %s\n", table, strings.Join(parts, ", "))
	}
	fmt.Fprintf(out, "%d created, %d replaced, %d unchanged",
		report.Count(reconcile.ActionCreated),
		report.Count(reconcile.ActionReplaced),
		report.Count(reconcile.ActionUnchanged))
	if report.DryRun {
		fmt.Fprint(out, " (dry run)")
	}
	fmt.Fprintln(out)
}
