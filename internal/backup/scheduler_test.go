package backup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crenwick/taxonvault/internal/repository"
	"github.com/crenwick/taxonvault/internal/repository/mock"
)

func testScheduler(provider *mock.DatasetProvider) (*Scheduler, *Store) {
	store := NewStore(mock.NewBackupRepository())
	builder := NewBuilder(provider, store)
	s := NewScheduler(store, builder)
	s.checkInterval = 10 * time.Millisecond
	return s, store
}

func waitForBackups(t *testing.T, store *Store, n int) []repository.Backup {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		backups, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(backups) >= n {
			return backups
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d backups", n)
	return nil
}

func TestSchedulerCreatesDueBackup(t *testing.T) {
	provider := mock.NewDatasetProvider(*testDataset())
	s, store := testScheduler(provider)

	s.Start(context.Background())
	defer s.Stop()

	// Force the next check to consider a backup overdue.
	s.mu.Lock()
	s.lastRun = time.Now().Add(-48 * time.Hour)
	s.mu.Unlock()
	s.NotifySettingsChanged()

	backups := waitForBackups(t, store, 1)
	if backups[0].TriggerType != repository.TriggerAuto {
		t.Errorf("trigger = %s, want AUTO", backups[0].TriggerType)
	}
	if backups[0].Description != "Scheduled automatic backup" {
		t.Errorf("description = %q", backups[0].Description)
	}
}

func TestSchedulerNotDueCreatesNothing(t *testing.T) {
	provider := mock.NewDatasetProvider(*testDataset())
	s, store := testScheduler(provider)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	backups, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("created %d backups before the interval elapsed", len(backups))
	}
}

func TestSchedulerSurvivesFailedTick(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	inner := mock.NewDatasetProvider(*testDataset())
	provider := mock.NewDatasetProvider(repository.Dataset{})
	provider.OnReadAll = func(ctx context.Context) (*repository.Dataset, error) {
		if failing.Load() {
			return nil, errors.New("database locked")
		}
		return inner.ReadAll(ctx)
	}

	s, store := testScheduler(provider)
	s.Start(context.Background())
	defer s.Stop()

	s.mu.Lock()
	s.lastRun = time.Now().Add(-48 * time.Hour)
	s.mu.Unlock()
	s.NotifySettingsChanged()

	// Let the failing tick happen, then clear the fault and force another.
	time.Sleep(50 * time.Millisecond)
	failing.Store(false)

	s.mu.Lock()
	s.lastRun = time.Now().Add(-48 * time.Hour)
	s.mu.Unlock()
	s.NotifySettingsChanged()

	waitForBackups(t, store, 1)
}

func TestSchedulerTriggerNow(t *testing.T) {
	provider := mock.NewDatasetProvider(*testDataset())
	s, store := testScheduler(provider)
	ctx := context.Background()

	b, err := s.TriggerNow(ctx, "pre-upgrade")
	if err != nil {
		t.Fatalf("TriggerNow() error = %v", err)
	}

	if b.TriggerType != repository.TriggerAuto {
		t.Errorf("trigger = %s, want AUTO", b.TriggerType)
	}
	if b.Description != "pre-upgrade" {
		t.Errorf("description = %q, want reason", b.Description)
	}

	backups, _ := store.List(ctx)
	if len(backups) != 1 {
		t.Fatalf("stored %d backups, want 1", len(backups))
	}
}

func TestSchedulerTriggerNowDefaultReason(t *testing.T) {
	provider := mock.NewDatasetProvider(*testDataset())
	s, _ := testScheduler(provider)

	b, err := s.TriggerNow(context.Background(), "")
	if err != nil {
		t.Fatalf("TriggerNow() error = %v", err)
	}
	if b.Description == "" {
		t.Error("empty description for default trigger reason")
	}
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	provider := mock.NewDatasetProvider(*testDataset())
	s, _ := testScheduler(provider)

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop()
	s.Stop()

	// Restartable after a stop.
	s.Start(ctx)
	s.Stop()
}
