package services

import (
	"context"

	"monnet/internal/snapshot"
)

// Sensor reads one metric family.
type Sensor interface {
	Name() string
	Family() snapshot.Family
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Collect(ctx context.Context) (snapshot.Snapshot, error)
}
