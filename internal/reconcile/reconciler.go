// Package reconcile converges installed trigger DDL onto the desired
// state synthesized from the live catalog.
//
// Reconciliation is an explicit diff, not unconditional re-creation:
// a trigger whose installed text already matches the synthesized text
// is left alone, so re-running against an unchanged schema performs
// zero catalog writes. All changed triggers of one table are applied
// inside a single transaction, so an interrupted run never leaves a
// table with a mixed trigger generation; tables committed earlier stay
// correctly reconciled.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/retrofeed/retrofeed/internal/catalog"
	"github.com/retrofeed/retrofeed/internal/synth"
)

// Reconciler applies synthesized trigger DDL to one database.
// The engine is single-threaded: one run reads the catalog,
// synthesizes specs, and applies DDL sequentially, relying on SQLite's
// own locking for everything else.
type Reconciler struct {
	db     *sql.DB
	tokens RunTokenGenerator
}

// New creates a Reconciler. A nil tokens generator defaults to UUIDv7.
func New(db *sql.DB, tokens RunTokenGenerator) *Reconciler {
	if tokens == nil {
		tokens = UUIDv7Generator{}
	}
	return &Reconciler{db: db, tokens: tokens}
}

// Plan computes the report Apply would produce without issuing any DDL.
func (r *Reconciler) Plan(ctx context.Context, tables []catalog.Table) (*Report, error) {
	return r.run(ctx, tables, true)
}

// Apply reconciles every table's triggers and reports the per-trigger
// outcome. On a WriteError the returned report covers the entries
// decided so far; prior tables remain correctly migrated.
func (r *Reconciler) Apply(ctx context.Context, tables []catalog.Table) (*Report, error) {
	return r.run(ctx, tables, false)
}

func (r *Reconciler) run(ctx context.Context, tables []catalog.Table, dryRun bool) (*Report, error) {
	report := &Report{
		RunToken: r.tokens.Generate(),
		DryRun:   dryRun,
		Entries:  []Entry{},
	}

	for _, table := range tables {
		entries, stale, err := r.diffTable(ctx, table)
		if err != nil {
			return report, err
		}
		if !dryRun && len(stale) > 0 {
			if err := r.applyTable(ctx, table.Name, stale); err != nil {
				return report, err
			}
		}
		report.Entries = append(report.Entries, entries...)
		slog.Debug("table reconciled",
			"run", report.RunToken,
			"table", table.Name,
			"changed", len(stale),
			"dry_run", dryRun)
	}

	return report, nil
}

// diffTable compares each synthesized trigger against the installed
// catalog text and returns the decided entries plus the specs that
// need DDL.
func (r *Reconciler) diffTable(ctx context.Context, table catalog.Table) ([]Entry, []synth.TriggerSpec, error) {
	set := synth.Synthesize(table)

	var (
		entries []Entry
		stale   []synth.TriggerSpec
	)
	for _, spec := range set.Specs() {
		installed, exists, err := catalog.TriggerSQL(ctx, r.db, spec.Name)
		if err != nil {
			return nil, nil, err
		}

		action := ActionUnchanged
		switch {
		case !exists:
			action = ActionCreated
			stale = append(stale, spec)
		case synth.Signature(installed) != spec.Signature:
			action = ActionReplaced
			stale = append(stale, spec)
		}

		entries = append(entries, Entry{
			Table:   table.Name,
			Trigger: spec.Name,
			Type:    table.Name + "." + spec.Op.EventSuffix(),
			Action:  action,
		})
	}
	return entries, stale, nil
}

// applyTable drops and recreates the stale triggers of one table
// inside a single transaction. Historical changefeed rows are never
// touched; only trigger definitions change.
func (r *Reconciler) applyTable(ctx context.Context, table string, specs []synth.TriggerSpec) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{Table: table, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer tx.Rollback()

	for _, spec := range specs {
		quoted := `"` + strings.ReplaceAll(spec.Name, `"`, `""`) + `"`
		if _, err := tx.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+quoted); err != nil {
			return &WriteError{Table: table, Trigger: spec.Name, Err: fmt.Errorf("drop trigger: %w", err)}
		}
		if _, err := tx.ExecContext(ctx, spec.SQL); err != nil {
			return &WriteError{Table: table, Trigger: spec.Name, Err: fmt.Errorf("create trigger: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &WriteError{Table: table, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}
