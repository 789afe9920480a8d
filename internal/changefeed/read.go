package changefeed

import (
	"context"
	"database/sql"
	"fmt"
)

// Event is one committed change, as stored in the changefeed table.
// data holds the JSON pre/post images: {"new": ...} for created,
// {"new": ..., "old": ...} for updated, {"old": ...} for deleted.
type Event struct {
	ID          int64  `json:"id"`
	Source      string `json:"source"`
	Subject     string `json:"subject"`
	Type        string `json:"type"`
	Time        int64  `json:"time"`
	SpecVersion string `json:"specversion"`
	Data        string `json:"data"`
}

// ReadEvents returns events with id greater than afterID, ordered by id.
// limit <= 0 reads everything. Returns an empty slice, not nil, when no
// events match.
func ReadEvents(ctx context.Context, db *sql.DB, afterID int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 means unbounded
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, source, subject, type, time, specversion, data
		FROM "`+TableName+`"
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query changefeed: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var data sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.Subject, &e.Type, &e.Time, &e.SpecVersion, &data); err != nil {
			return nil, fmt.Errorf("scan changefeed row: %w", err)
		}
		e.Data = data.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changefeed: %w", err)
	}
	return events, nil
}

// ReadCloudEvents returns the rendered CloudEvents JSON documents from
// the view, ordered by id, with the same afterID/limit semantics as
// ReadEvents.
func ReadCloudEvents(ctx context.Context, db *sql.DB, afterID int64, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT cloudevent
		FROM "`+ViewName+`"
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query cloudevents view: %w", err)
	}
	defer rows.Close()

	docs := []string{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan cloudevent: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cloudevents view: %w", err)
	}
	return docs, nil
}
