// Package catalog reads table and trigger definitions from a SQLite
// database's system catalog. All queries are read-only; nothing in this
// package mutates the database.
package catalog

import (
	"context"
	"database/sql"
	"sort"

	"github.com/retrofeed/retrofeed/internal/changefeed"
)

// Column is one column of a tracked table. Position is the catalog
// declaration position (cid), starting at zero.
type Column struct {
	Name     string
	Position int
}

// Table describes one tracked table as read from the live catalog.
// It is recomputed on every run and never persisted, so it always
// reflects the current schema.
type Table struct {
	Name    string
	Columns []Column

	// PrimaryKey holds the declared primary key column names in
	// key-position order. Empty when the table has no declared primary
	// key, in which case triggers fall back to the intrinsic rowid.
	PrimaryKey []string
}

// ListTables returns the tables to track.
//
// With no targets it returns every user table, excluding sqlite_
// internals and retrofeed's own objects, ordered by name for
// deterministic reports. With explicit targets it returns exactly those
// tables in the given order, or an UnknownTableError if any is missing
// from the catalog.
func ListTables(ctx context.Context, db *sql.DB, targets []string) ([]Table, error) {
	names := targets
	if len(names) == 0 {
		var err error
		names, err = listUserTables(ctx, db)
		if err != nil {
			return nil, err
		}
	} else {
		for _, name := range names {
			ok, err := tableExists(ctx, db, name)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, &UnknownTableError{Table: name}
			}
		}
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		table, err := readTable(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func listUserTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tbl_name FROM sqlite_master
		WHERE type = 'table'
		AND tbl_name NOT LIKE 'sqlite_%'
		AND tbl_name NOT LIKE ?
		ORDER BY tbl_name
	`, changefeed.NamePrefix+"%")
	if err != nil {
		return nil, &ReadError{Op: "list tables", Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &ReadError{Op: "list tables", Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Op: "list tables", Err: err}
	}
	return names, nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM sqlite_master WHERE type = 'table' AND tbl_name = ?
	`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &ReadError{Op: "check table " + name, Err: err}
	}
	return true, nil
}

// readTable reads one table's columns and primary key via
// pragma_table_info. Column order follows cid; key order follows the
// pk rank, which supports composite keys.
func readTable(ctx context.Context, db *sql.DB, name string) (Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT cid, name, pk FROM pragma_table_info(?) ORDER BY cid
	`, name)
	if err != nil {
		return Table{}, &ReadError{Op: "read table " + name, Err: err}
	}
	defer rows.Close()

	table := Table{Name: name}
	type keyCol struct {
		name string
		rank int
	}
	var keys []keyCol
	for rows.Next() {
		var (
			cid, pk int
			col     string
		)
		if err := rows.Scan(&cid, &col, &pk); err != nil {
			return Table{}, &ReadError{Op: "read table " + name, Err: err}
		}
		table.Columns = append(table.Columns, Column{Name: col, Position: cid})
		if pk > 0 {
			keys = append(keys, keyCol{name: col, rank: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return Table{}, &ReadError{Op: "read table " + name, Err: err}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].rank < keys[j].rank })
	for _, k := range keys {
		table.PrimaryKey = append(table.PrimaryKey, k.name)
	}

	return table, nil
}

// TriggerSQL returns the stored DDL text of a trigger, exactly as it
// was executed, and whether the trigger exists. SQLite keeps the full
// CREATE TRIGGER statement in sqlite_master, which makes byte
// comparison against freshly synthesized DDL a valid no-op test.
func TriggerSQL(ctx context.Context, db *sql.DB, name string) (string, bool, error) {
	var ddl string
	err := db.QueryRowContext(ctx, `
		SELECT sql FROM sqlite_master WHERE type = 'trigger' AND name = ?
	`, name).Scan(&ddl)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &ReadError{Op: "read trigger " + name, Err: err}
	}
	return ddl, true, nil
}
