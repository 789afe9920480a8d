package synth

import (
	"fmt"
	"strings"

	"github.com/retrofeed/retrofeed/internal/catalog"
	"github.com/retrofeed/retrofeed/internal/changefeed"
)

// Operation is one of the three row-level mutations a trigger observes.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations lists all operations in synthesis order.
var Operations = []Operation{OpInsert, OpUpdate, OpDelete}

// Keyword returns the SQL trigger event keyword for the operation.
func (op Operation) Keyword() string {
	return strings.ToUpper(string(op))
}

// EventSuffix returns the CloudEvents type suffix for the operation:
// created, updated, or deleted.
func (op Operation) EventSuffix() string {
	switch op {
	case OpInsert:
		return "created"
	case OpUpdate:
		return "updated"
	case OpDelete:
		return "deleted"
	}
	return ""
}

// TriggerSpec is the desired state for one (table, operation) pair.
type TriggerSpec struct {
	// Op is the operation this trigger observes.
	Op Operation

	// Name is derived from the table name and operation and lives in
	// the retrofeed_ namespace, so it cannot collide with application
	// triggers.
	Name string

	// SQL is the full CREATE TRIGGER statement, without a trailing
	// semicolon, matching how sqlite_master stores it.
	SQL string

	// Signature is a domain-separated hash of SQL, used by the
	// reconciler to compare desired against installed text.
	Signature string
}

// TriggerSet holds the three trigger specs for one table.
type TriggerSet struct {
	Created TriggerSpec
	Updated TriggerSpec
	Deleted TriggerSpec
}

// Specs returns the set's specs in synthesis order.
func (s TriggerSet) Specs() []TriggerSpec {
	return []TriggerSpec{s.Created, s.Updated, s.Deleted}
}

// TriggerName returns the deterministic trigger name for a table and
// operation.
func TriggerName(table string, op Operation) string {
	return fmt.Sprintf("%s%s_%s_trigger", changefeed.NamePrefix, table, op)
}

// Synthesize produces the three trigger specs for a table. Pure: no
// side effects, and byte-identical output for equal input.
func Synthesize(table catalog.Table) TriggerSet {
	return TriggerSet{
		Created: synthesizeOne(table, OpInsert),
		Updated: synthesizeOne(table, OpUpdate),
		Deleted: synthesizeOne(table, OpDelete),
	}
}

func synthesizeOne(table catalog.Table, op Operation) TriggerSpec {
	name := TriggerName(table.Name, op)
	ddl := buildSQL(table, op, name)
	return TriggerSpec{
		Op:        op,
		Name:      name,
		SQL:       ddl,
		Signature: Signature(ddl),
	}
}

func buildSQL(table catalog.Table, op Operation, name string) string {
	eventType := table.Name + "." + op.EventSuffix()

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TRIGGER %s AFTER %s ON %s\n",
		quoteIdent(name), op.Keyword(), quoteIdent(table.Name))
	b.WriteString("BEGIN\n")
	fmt.Fprintf(&b, "    INSERT INTO %s (\"source\", \"subject\", \"type\", \"specversion\", \"data\")\n",
		quoteIdent(changefeed.TableName))
	fmt.Fprintf(&b, "    VALUES (%s, %s, %s, %s, %s);\n",
		quoteString(table.Name),
		subjectExpr(table, op),
		quoteString(eventType),
		quoteString(changefeed.SpecVersion),
		dataExpr(table, op))
	b.WriteString("END")
	return b.String()
}

// subjectExpr serializes the affected row's primary key as text.
// Compound keys concatenate each value separated by ':', so (1,) is
// '1' and (1, 'abc') is '1:abc'. Delete reads the pre-image; insert
// and update read the post-image.
//
// Tables without a declared primary key fall back to the intrinsic
// rowid. That subject is stable across updates, but SQLite may reuse
// a rowid after delete, so it is not stable across delete-then-insert.
func subjectExpr(table catalog.Table, op Operation) string {
	ref := rowRef(op)
	if len(table.PrimaryKey) == 0 {
		return ref + ".rowid"
	}
	parts := make([]string, 0, len(table.PrimaryKey))
	for _, key := range table.PrimaryKey {
		parts = append(parts, ref+"."+quoteIdent(key))
	}
	return strings.Join(parts, " || ':' || ")
}

// dataExpr builds the JSON data payload: created carries only the
// post-image, deleted only the pre-image, updated both.
func dataExpr(table catalog.Table, op Operation) string {
	switch op {
	case OpInsert:
		return "json_object('new', " + imageExpr("NEW", table.Columns) + ")"
	case OpUpdate:
		return "json_object('new', " + imageExpr("NEW", table.Columns) +
			", 'old', " + imageExpr("OLD", table.Columns) + ")"
	case OpDelete:
		return "json_object('old', " + imageExpr("OLD", table.Columns) + ")"
	}
	return ""
}

// imageExpr builds a flat json_object over the full current column
// set, keyed by column name. Blob values are hex-encoded since
// json_object rejects blobs; everything else, NULL included, passes
// through unchanged.
func imageExpr(ref string, cols []catalog.Column) string {
	pairs := make([]string, 0, len(cols))
	for _, col := range cols {
		val := ref + "." + quoteIdent(col.Name)
		safe := fmt.Sprintf("CASE WHEN typeof(%s) = 'blob' THEN hex(%s) ELSE %s END", val, val, val)
		pairs = append(pairs, quoteString(col.Name)+", "+safe)
	}
	return "json_object(" + strings.Join(pairs, ", ") + ")"
}

func rowRef(op Operation) string {
	if op == OpDelete {
		return "OLD"
	}
	return "NEW"
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteString single-quotes a SQL string literal, escaping embedded
// quotes.
func quoteString(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
