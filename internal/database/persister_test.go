package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monnet/internal/database/relational"
	"monnet/internal/engine"
	"monnet/internal/snapshot"
	"monnet/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestPersister(t *testing.T, opts ...Option) (*Persister, *relational.Repo) {
	t.Helper()
	client, err := relational.NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := relational.NewRepo(client.DB())
	require.NoError(t, repo.Migrate(context.Background()))

	opts = append([]Option{WithClock(func() time.Time { return t0 })}, opts...)
	p, err := NewPersister(repo, discard, opts...)
	require.NoError(t, err)
	return p, repo
}

func TestPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPersister(t)

	disks := snapshot.DiskInfo{Entries: []snapshot.DiskEntry{{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4", TotalMB: 100, UsedMB: 50, FreeMB: 50, UsedPercent: 50}}}
	st := store.New(discard, store.WithPersister(p))
	st.Update(snapshot.IoWait{Value: 1.25})
	st.Update(disks)
	st.Update(snapshot.IoWait{Value: 2.5})

	snaps, events := p.Pending()
	assert.Equal(t, 2, snaps, "only the latest reading per family is kept")
	assert.Zero(t, events)

	require.NoError(t, p.Flush(ctx))
	snaps, _ = p.Pending()
	assert.Zero(t, snaps)

	restored, err := p.Restore(ctx)
	require.NoError(t, err)
	require.Len(t, restored, 2)
	assert.True(t, restored[snapshot.FamilyIoWait].Equal(snapshot.IoWait{Value: 2.5}))
	assert.True(t, restored[snapshot.FamilyDisk].Equal(disks))
}

func TestPersisterRecordsEvents(t *testing.T) {
	ctx := context.Background()
	p, repo := newTestPersister(t)

	p.RecordEvents(nil)
	p.RecordEvents([]engine.Event{
		{Name: engine.EventHighCPUUsage, Identity: engine.EventHighCPUUsage, Severity: engine.SeverityWarn, Value: 85, FiredAt: t0},
		{Name: engine.EventHighDiskUsage, Identity: engine.DiskIdentity("/dev/sda1"), Severity: engine.SeverityAlert, Value: 97,
			Payload: snapshot.DiskEntry{Device: "/dev/sda1"}, FiredAt: t0.Add(time.Second)},
	})
	require.NoError(t, p.Flush(ctx))

	rows, err := repo.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "high_disk_usage_/dev/sda1", rows[0].Identity)
	assert.Equal(t, "alert", rows[0].Severity)
	assert.Contains(t, string(rows[0].Payload), `"/dev/sda1"`)
	assert.Equal(t, "warn", rows[1].Severity)
}

func TestPersisterPrunesOldEvents(t *testing.T) {
	ctx := context.Background()
	p, repo := newTestPersister(t, WithRetention(time.Hour))

	p.RecordEvents([]engine.Event{
		{Name: "old", Identity: "old", Severity: engine.SeverityWarn, FiredAt: t0.Add(-2 * time.Hour)},
		{Name: "new", Identity: "new", Severity: engine.SeverityWarn, FiredAt: t0},
	})
	require.NoError(t, p.Flush(ctx))

	rows, err := repo.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].Name)
}

func TestPersisterStopFlushes(t *testing.T) {
	p, repo := newTestPersister(t, WithFlushInterval(time.Hour))

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()), "second start is rejected")

	p.Persist(snapshot.IoWait{Value: 4})
	p.Persist(nil)
	p.Stop()

	rows, err := repo.LoadSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "iowait", rows[0].Family)
}

// failingRepo refuses every write.
type failingRepo struct {
	relational.Repository
}

var errDown = errors.New("disk full")

func (failingRepo) SaveSnapshots(context.Context, []relational.SnapshotRow) error { return errDown }
func (failingRepo) InsertEvents(context.Context, []relational.EventRow) error     { return errDown }

func TestPersisterRequeuesOnFailure(t *testing.T) {
	p, err := NewPersister(failingRepo{}, discard, WithRetention(0))
	require.NoError(t, err)

	p.Persist(snapshot.IoWait{Value: 1})
	p.RecordEvents([]engine.Event{{Name: "e", Identity: "e"}})

	err = p.Flush(context.Background())
	assert.ErrorIs(t, err, errDown)

	snaps, events := p.Pending()
	assert.Equal(t, 1, snaps)
	assert.Equal(t, 1, events)
}

func TestPersisterCapsQueuedEvents(t *testing.T) {
	p, err := NewPersister(failingRepo{}, discard, WithRetention(0))
	require.NoError(t, err)

	batch := make([]engine.Event, maxPendingEvents)
	for i := range batch {
		batch[i] = engine.Event{Name: "e", Identity: fmt.Sprintf("old-%d", i)}
	}
	p.RecordEvents(batch)
	assert.ErrorIs(t, p.Flush(context.Background()), errDown)

	p.RecordEvents([]engine.Event{{Name: "e", Identity: "new-0"}, {Name: "e", Identity: "new-1"}})
	assert.ErrorIs(t, p.Flush(context.Background()), errDown)

	_, events := p.Pending()
	assert.Equal(t, maxPendingEvents, events)
	assert.Equal(t, "old-2", p.events[0].Identity, "oldest events are dropped first")
	assert.Equal(t, "new-1", p.events[len(p.events)-1].Identity)
}

func TestNewPersisterRequiresRepo(t *testing.T) {
	_, err := NewPersister(nil, nil)
	assert.Error(t, err)
}

func TestOpenFileDatastore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "datastore.duckdb")

	var logs bytes.Buffer
	p, err := Open(ctx, path, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "datastore opened")
	assert.Contains(t, logs.String(), path)
	p.Persist(snapshot.IoWait{Value: 7})
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, p.Close())

	p, err = Open(ctx, path, discard)
	require.NoError(t, err)
	defer p.Close()
	restored, err := p.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored[snapshot.FamilyIoWait].Equal(snapshot.IoWait{Value: 7}))
}
