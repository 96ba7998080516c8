package relational

import (
	"context"
	"time"
)

// SnapshotRepository persists the last reading of every family.
type SnapshotRepository interface {
	Migrate(ctx context.Context) error
	SaveSnapshots(ctx context.Context, rows []SnapshotRow) error
	LoadSnapshots(ctx context.Context) ([]SnapshotRow, error)
}

// EventRepository keeps the fired-event history.
type EventRepository interface {
	InsertEvents(ctx context.Context, events []EventRow) error
	RecentEvents(ctx context.Context, limit int) ([]EventRow, error)
	EventCounts(ctx context.Context, since time.Time) ([]EventCount, error)
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
}

// Repository is everything the agent stores.
type Repository interface {
	SnapshotRepository
	EventRepository
}

var _ Repository = (*Repo)(nil)
