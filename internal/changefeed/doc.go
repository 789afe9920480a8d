// Package changefeed owns the shared append-only event log.
//
// Every object retrofeed installs in the target database lives in the
// retrofeed_ namespace: the changefeed table, the CloudEvents rendering
// view, and the optional query indices. The table is created once and
// never altered afterwards; its rows are written exclusively by the
// per-table triggers, never by this process. The view carries no state,
// so it is dropped and recreated on every run to stay in sync with the
// current rendering logic.
//
// Event ordering contract: the changefeed's AUTOINCREMENT id column is
// the authoritative total order. The time column has second resolution
// and may tie across events from the same transaction.
package changefeed
