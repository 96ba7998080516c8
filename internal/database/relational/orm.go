package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
  family      VARCHAR PRIMARY KEY,
  payload     VARCHAR NOT NULL,
  updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
  event_id    VARCHAR PRIMARY KEY,
  name        VARCHAR NOT NULL,
  identity    VARCHAR NOT NULL,
  severity    VARCHAR NOT NULL,
  value       DOUBLE,
  payload     VARCHAR,
  fired_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS events_fired_at ON events(fired_at);
`

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveSnapshots upserts every row in one transaction.
func (r *Repo) SaveSnapshots(ctx context.Context, rows []SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots(family, payload, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (family) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
		`, row.Family, string(row.Payload), row.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("save snapshot %s: %w", row.Family, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) SaveSnapshot(ctx context.Context, row SnapshotRow) error {
	return r.SaveSnapshots(ctx, []SnapshotRow{row})
}

func (r *Repo) LoadSnapshots(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT family, payload, updated_at FROM snapshots ORDER BY family`)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotRow{}
	for rows.Next() {
		var (
			s       SnapshotRow
			payload string
		)
		if err := rows.Scan(&s.Family, &payload, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Payload = []byte(payload)
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertEvents appends to the history. Rows without an id get a fresh one.
func (r *Repo) InsertEvents(ctx context.Context, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range events {
		if e.EventID == "" {
			e.EventID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events(event_id, name, identity, severity, value, payload, fired_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.EventID, e.Name, e.Identity, e.Severity, e.Value, nullEmpty(string(e.Payload)), e.FiredAt.UTC())
		if err != nil {
			return fmt.Errorf("insert event %s: %w", e.Identity, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) InsertEvent(ctx context.Context, e EventRow) error {
	return r.InsertEvents(ctx, []EventRow{e})
}

// PruneEvents deletes history older than before and reports how many rows went.
func (r *Repo) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE fired_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

func nullEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
