package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/crenwick/taxonvault/internal/metrics"
	"github.com/crenwick/taxonvault/internal/repository"
)

// Store manages backup records: creation with version allocation, listing,
// retrieval, deletion, settings, and retention enforcement. All mutating
// operations are serialized through an internal mutex so retention never
// races a concurrent create or settings change.
type Store struct {
	repo repository.BackupRepository
	mu   sync.Mutex
}

func NewStore(repo repository.BackupRepository) *Store {
	return &Store{repo: repo}
}

// Create persists an encoded snapshot as a new backup record and enforces
// the retention limit afterwards. The returned record carries the allocated
// ID and version number.
func (s *Store) Create(ctx context.Context, trigger repository.TriggerType, description string, enc *Encoded, counts repository.EntityCounts) (*repository.Backup, error) {
	if !trigger.IsValid() {
		return nil, &ValidationError{Field: "triggerType", Message: fmt.Sprintf("unknown trigger type: %s", trigger)}
	}
	if enc == nil {
		return nil, fmt.Errorf("encoded payload cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := &repository.Backup{
		TriggerType:    trigger,
		Description:    description,
		Payload:        enc.Payload,
		OriginalSize:   enc.OriginalSize,
		CompressedSize: enc.CompressedSize,
		Checksum:       enc.Checksum,
		EntityCounts:   counts,
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to store backup: %w", err)
	}

	metrics.BackupsCreatedTotal.WithLabelValues(string(trigger)).Inc()
	metrics.BackupPayloadBytes.Observe(float64(enc.CompressedSize))

	if err := s.enforceRetention(ctx); err != nil {
		// The new record is safely stored; a failed prune is not fatal.
		slog.Warn("retention enforcement failed after backup creation",
			"backup_id", b.ID,
			"error", err)
	}

	return b, nil
}

// List returns all backup records, oldest first, without payloads.
func (s *Store) List(ctx context.Context) ([]repository.Backup, error) {
	backups, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return backups, nil
}

// Get returns a single backup record including its payload.
func (s *Store) Get(ctx context.Context, id int64) (*repository.Backup, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes a backup record. Deleting a record never frees its version
// number for reuse.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(ctx, id)
}

func (s *Store) GetSettings(ctx context.Context) (*repository.BackupSettings, error) {
	return s.repo.GetSettings(ctx)
}

// UpdateSettings applies a partial settings update. Lowering the retention
// limit prunes excess records immediately.
func (s *Store) UpdateSettings(ctx context.Context, upd SettingsUpdate) (*repository.BackupSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup settings: %w", err)
	}

	if upd.MaxBackups != nil {
		if *upd.MaxBackups < 1 {
			return nil, &ValidationError{Field: "maxBackups", Message: "must be at least 1"}
		}
		settings.MaxBackups = *upd.MaxBackups
	}
	if upd.AutoBackupIntervalHours != nil {
		if *upd.AutoBackupIntervalHours < 1 {
			return nil, &ValidationError{Field: "autoBackupIntervalHours", Message: "must be at least 1"}
		}
		settings.AutoBackupIntervalHours = *upd.AutoBackupIntervalHours
	}

	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save backup settings: %w", err)
	}

	if err := s.enforceRetention(ctx); err != nil {
		slog.Warn("retention enforcement failed after settings update", "error", err)
	}

	return settings, nil
}

// enforceRetention deletes the oldest records until the count is within the
// configured limit. Caller must hold s.mu.
func (s *Store) enforceRetention(ctx context.Context) error {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load backup settings: %w", err)
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count backups: %w", err)
	}

	excess := count - settings.MaxBackups
	if excess <= 0 {
		return nil
	}

	deleted, err := s.repo.DeleteOldest(ctx, excess)
	if err != nil {
		return fmt.Errorf("failed to prune old backups: %w", err)
	}

	metrics.RetentionEvictionsTotal.Add(float64(deleted))
	slog.Info("pruned old backups", "deleted", deleted, "max_backups", settings.MaxBackups)
	return nil
}
