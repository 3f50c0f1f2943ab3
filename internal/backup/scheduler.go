package backup

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crenwick/taxonvault/internal/repository"
)

// Scheduler creates automatic backups at the interval configured in backup
// settings. The interval is re-read from settings on every check, so changes
// take effect without a restart. A failed tick is logged and the loop
// continues.
type Scheduler struct {
	store   *Store
	builder *Builder

	mu      sync.Mutex
	lastRun time.Time

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	notifyCh chan struct{}

	// checkInterval is how often the scheduler wakes up to see whether a
	// backup is due. Shortened in tests.
	checkInterval time.Duration
}

func NewScheduler(store *Store, builder *Builder) *Scheduler {
	return &Scheduler{
		store:         store,
		builder:       builder,
		notifyCh:      make(chan struct{}, 1),
		checkInterval: time.Minute,
	}
}

// Start launches the scheduler loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	s.stopCh = make(chan struct{})
	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	slog.Info("backup scheduler started", "check_interval", s.checkInterval.String())
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("backup scheduler stopped")
}

// NotifySettingsChanged wakes the scheduler so a shortened interval is
// picked up without waiting for the next tick.
func (s *Scheduler) NotifySettingsChanged() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// TriggerNow creates an automatic backup immediately, outside the schedule.
// The reason is recorded in the backup description.
func (s *Scheduler) TriggerNow(ctx context.Context, reason string) (*repository.Backup, error) {
	if reason == "" {
		reason = "Manually triggered automatic backup"
	}

	b, err := s.builder.Build(ctx, repository.TriggerAuto, reason)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	return b, nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-s.notifyCh:
			s.checkAndRun(ctx)
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// checkAndRun creates a backup if one is due according to the current
// settings. Failures are logged; the next due backup will be attempted on
// schedule regardless.
func (s *Scheduler) checkAndRun(ctx context.Context) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		slog.Error("scheduler failed to load backup settings", "error", err)
		return
	}

	interval := time.Duration(settings.AutoBackupIntervalHours) * time.Hour

	s.mu.Lock()
	due := time.Since(s.lastRun) >= interval
	s.mu.Unlock()

	if !due {
		return
	}

	_, err = s.builder.Build(ctx, repository.TriggerAuto, "Scheduled automatic backup")

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	if err != nil {
		slog.Error("scheduled backup failed", "error", err)
	}
}
