package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const maxEventRows = 500

// RecentEvents returns the newest events first.
func (r *Repo) RecentEvents(ctx context.Context, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxEventRows {
		limit = maxEventRows
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, name, identity, severity, value, payload, fired_at
		FROM events
		ORDER BY fired_at DESC, event_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events failed: %w", err)
	}
	defer rows.Close()

	events := []EventRow{} // Initialize as empty slice, not nil
	for rows.Next() {
		var (
			e       EventRow
			value   sql.NullFloat64
			payload sql.NullString
		)
		if err := rows.Scan(&e.EventID, &e.Name, &e.Identity, &e.Severity, &value, &payload, &e.FiredAt); err != nil {
			return nil, fmt.Errorf("scan event failed: %w", err)
		}
		if value.Valid {
			e.Value = value.Float64
		}
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return events, nil
}

// EventCounts groups the events fired at or after since.
func (r *Repo) EventCounts(ctx context.Context, since time.Time) ([]EventCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, severity, COUNT(*) AS n, MAX(fired_at) AS last
		FROM events
		WHERE fired_at >= ?
		GROUP BY name, severity
		ORDER BY name, severity
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query event counts failed: %w", err)
	}
	defer rows.Close()

	counts := []EventCount{}
	for rows.Next() {
		var c EventCount
		if err := rows.Scan(&c.Name, &c.Severity, &c.Count, &c.Last); err != nil {
			return nil, fmt.Errorf("scan event count failed: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
