package changefeed

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	// NamePrefix reserves the retrofeed_ namespace in the target database.
	// Tables and views carrying this prefix are never tracked.
	NamePrefix = "retrofeed_"

	// TableName is the append-only event log table.
	TableName = NamePrefix + "changefeed"

	// ViewName renders each event as a CloudEvents JSON document.
	ViewName = NamePrefix + "cloudevents"

	// SpecVersion is the CloudEvents spec version stamped on every event.
	SpecVersion = "1.0"
)

// tableDDL creates the event log. The id column is the authoritative
// commit-order sequence; AUTOINCREMENT prevents id reuse after deletes.
// time defaults to epoch seconds at insert, evaluated inside the
// writer's own transaction.
const tableDDL = `CREATE TABLE IF NOT EXISTS "` + TableName + `" (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    subject TEXT NOT NULL,
    type TEXT NOT NULL,
    time INTEGER NOT NULL DEFAULT (strftime('%s')),
    specversion TEXT NOT NULL,
    data JSON
)`

// viewDDL renders the CloudEvents envelope: string id, zero-padded
// sequence wide enough for any 64-bit id, and ISO-8601 UTC time.
const viewDDL = `CREATE VIEW "` + ViewName + `" AS
SELECT *, json_object(
    'id', CAST(id AS TEXT),
    'sequence', printf('%020d', id),
    'source', source,
    'subject', subject,
    'type', type,
    'time', strftime('%Y-%m-%dT%H:%M:%S+00:00', datetime(time, 'unixepoch')),
    'specversion', specversion,
    'datacontenttype', 'application/json',
    'data', json(data)
) cloudevent
FROM "` + TableName + `"`

// indexDDL supports the two common consumer queries: per-subject history
// and time-windowed reads.
var indexDDL = []string{
	`CREATE INDEX IF NOT EXISTS "` + TableName + `_source_subject_id_idx"
ON "` + TableName + `" (source, subject, id)`,
	`CREATE INDEX IF NOT EXISTS "` + TableName + `_time_id_idx"
ON "` + TableName + `" (time, id)`,
}

// Options controls optional schema objects.
type Options struct {
	// Autoindex installs the changefeed query indices. Defaults on at the
	// CLI; disable for write-heavy databases where index maintenance on
	// every event is unwanted.
	Autoindex bool
}

// EnsureSchema creates the changefeed table, view, and indices.
// Idempotent: the table and indices are create-if-absent and the
// existing table is never altered or dropped. The view is replaced
// unconditionally.
func EnsureSchema(ctx context.Context, db *sql.DB, opts Options) error {
	if _, err := db.ExecContext(ctx, tableDDL); err != nil {
		return fmt.Errorf("create changefeed table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `DROP VIEW IF EXISTS "`+ViewName+`"`); err != nil {
		return fmt.Errorf("drop changefeed view: %w", err)
	}
	if _, err := db.ExecContext(ctx, viewDDL); err != nil {
		return fmt.Errorf("create changefeed view: %w", err)
	}

	if opts.Autoindex {
		for _, ddl := range indexDDL {
			if _, err := db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("create changefeed index: %w", err)
			}
		}
	}

	return nil
}
