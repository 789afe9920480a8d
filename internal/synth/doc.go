// Package synth derives trigger DDL from table schemas.
//
// Synthesis is a pure function: for a fixed catalog.Table it produces
// byte-identical SQL on every call. That determinism is the foundation
// of idempotent reconciliation - the reconciler compares synthesized
// text against the DDL stored in sqlite_master and only issues DDL when
// they differ.
//
// Each tracked table gets three AFTER row-level triggers. A trigger
// inserts one changefeed row per affected row, inside the writer's own
// transaction, carrying the full current column set as JSON pre/post
// images. Because the column set is captured at synthesis time, schema
// drift surfaces in future events simply by re-running synthesis;
// historical events are never rewritten.
package synth
