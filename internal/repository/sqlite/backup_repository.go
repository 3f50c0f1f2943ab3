package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/crenwick/taxonvault/internal/repository"
)

// BackupRepository implements repository.BackupRepository for SQLite.
// Backup payloads are stored inline as BLOBs; version numbers come from a
// persisted counter in the backup_settings singleton row so they are never
// reused after deletion.
type BackupRepository struct {
	db *sql.DB
}

// NewBackupRepository creates a new SQLite backup repository.
func NewBackupRepository(db *sql.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// ensureSettingsRow creates the settings singleton with defaults if absent.
// Safe to call inside or outside a transaction.
func ensureSettingsRow(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}) error {
	defaults := repository.DefaultBackupSettings()
	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO backup_settings (id, max_backups, auto_backup_interval_hours, next_version)
		 VALUES (1, ?, ?, 1)`,
		defaults.MaxBackups, defaults.AutoBackupIntervalHours)
	if err != nil {
		return fmt.Errorf("failed to initialize backup settings: %w", err)
	}
	return nil
}

// Insert persists a new backup record, assigning its ID and version number.
// The version allocation and the insert happen in one transaction.
func (r *BackupRepository) Insert(ctx context.Context, b *repository.Backup) error {
	if r.db == nil {
		return repository.ErrNilDatabase
	}
	if b == nil {
		return fmt.Errorf("backup cannot be nil")
	}
	if !b.TriggerType.IsValid() {
		return fmt.Errorf("invalid trigger type: %s", b.TriggerType)
	}

	countsJSON, err := json.Marshal(b.EntityCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal entity counts: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureSettingsRow(ctx, tx); err != nil {
		return err
	}

	var version int64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_version FROM backup_settings WHERE id = 1`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read version counter: %w", err)
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO backups (version_number, created_at, trigger_type, description,
		                      payload, original_size, compressed_size, checksum, entity_counts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		version, formatTime(b.CreatedAt), string(b.TriggerType), b.Description,
		b.Payload, b.OriginalSize, b.CompressedSize, b.Checksum, string(countsJSON))
	if err != nil {
		return fmt.Errorf("failed to insert backup: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get backup id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE backup_settings SET next_version = next_version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to advance version counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit backup insert: %w", err)
	}

	b.ID = id
	b.VersionNumber = version
	return nil
}

// List returns metadata for all backups, payload excluded, ordered by
// version number ascending.
func (r *BackupRepository) List(ctx context.Context) ([]repository.Backup, error) {
	if r.db == nil {
		return nil, repository.ErrNilDatabase
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version_number, created_at, trigger_type, description,
		        original_size, compressed_size, checksum, entity_counts
		 FROM backups ORDER BY version_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	backups := []repository.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows, false)
		if err != nil {
			return nil, err
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

// Get returns a backup including its payload.
func (r *BackupRepository) Get(ctx context.Context, id int64) (*repository.Backup, error) {
	if r.db == nil {
		return nil, repository.ErrNilDatabase
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, version_number, created_at, trigger_type, description,
		        original_size, compressed_size, checksum, entity_counts, payload
		 FROM backups WHERE id = ?`, id)

	b, err := scanBackup(row, true)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes a backup by ID.
func (r *BackupRepository) Delete(ctx context.Context, id int64) error {
	if r.db == nil {
		return repository.ErrNilDatabase
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteOldest removes the n backups with the lowest version numbers.
func (r *BackupRepository) DeleteOldest(ctx context.Context, n int) (int, error) {
	if r.db == nil {
		return 0, repository.ErrNilDatabase
	}
	if n <= 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM backups WHERE id IN
		   (SELECT id FROM backups ORDER BY version_number ASC LIMIT ?)`, n)
	if err != nil {
		return 0, fmt.Errorf("failed to delete oldest backups: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}
	return int(affected), nil
}

// Count returns the number of stored backups.
func (r *BackupRepository) Count(ctx context.Context) (int, error) {
	if r.db == nil {
		return 0, repository.ErrNilDatabase
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM backups`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count backups: %w", err)
	}
	return count, nil
}

// GetSettings returns the settings singleton, creating it with defaults on
// first use.
func (r *BackupRepository) GetSettings(ctx context.Context) (*repository.BackupSettings, error) {
	if r.db == nil {
		return nil, repository.ErrNilDatabase
	}

	if err := ensureSettingsRow(ctx, r.db); err != nil {
		return nil, err
	}

	var s repository.BackupSettings
	err := r.db.QueryRowContext(ctx,
		`SELECT max_backups, auto_backup_interval_hours FROM backup_settings WHERE id = 1`).
		Scan(&s.MaxBackups, &s.AutoBackupIntervalHours)
	if err != nil {
		return nil, fmt.Errorf("failed to get backup settings: %w", err)
	}
	return &s, nil
}

// UpdateSettings persists the settings singleton using the UPSERT pattern.
// The version counter is left untouched.
func (r *BackupRepository) UpdateSettings(ctx context.Context, s *repository.BackupSettings) error {
	if r.db == nil {
		return repository.ErrNilDatabase
	}
	if s == nil {
		return fmt.Errorf("settings cannot be nil")
	}

	query := `
		INSERT INTO backup_settings (id, max_backups, auto_backup_interval_hours, next_version, updated_at)
		VALUES (1, ?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			max_backups = excluded.max_backups,
			auto_backup_interval_hours = excluded.auto_backup_interval_hours,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, query, s.MaxBackups, s.AutoBackupIntervalHours); err != nil {
		return fmt.Errorf("failed to update backup settings: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanBackup.
type scanner interface {
	Scan(dest ...any) error
}

func scanBackup(s scanner, withPayload bool) (*repository.Backup, error) {
	var b repository.Backup
	var createdAt, triggerType, countsJSON string

	dest := []any{
		&b.ID, &b.VersionNumber, &createdAt, &triggerType, &b.Description,
		&b.OriginalSize, &b.CompressedSize, &b.Checksum, &countsJSON,
	}
	if withPayload {
		dest = append(dest, &b.Payload)
	}

	if err := s.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan backup: %w", err)
	}

	var err error
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse backup created_at: %w", err)
	}
	b.TriggerType = repository.TriggerType(triggerType)
	if err := json.Unmarshal([]byte(countsJSON), &b.EntityCounts); err != nil {
		return nil, fmt.Errorf("failed to parse entity counts: %w", err)
	}
	return &b, nil
}

// Ensure BackupRepository implements repository.BackupRepository.
var _ repository.BackupRepository = (*BackupRepository)(nil)
