// Package backup implements the TaxonVault backup and versioning engine.
//
// The engine produces point-in-time, integrity-verified, compressed snapshots
// of the entire catalog dataset, keeps a bounded history of them, restores
// any snapshot atomically (taking a safety snapshot first), and exchanges
// snapshots with other instances through a self-describing binary container.
//
// Layout:
//   - codec.go:     canonical serialization + gzip + SHA-256 integrity
//   - store.go:     backup record persistence, versioning, retention
//   - snapshot.go:  consistent dataset capture via the dataset provider
//   - restore.go:   exclusive, all-or-nothing restore with safety snapshot
//   - scheduler.go: periodic automatic snapshots
//   - exchange.go:  portable export/import container
package backup

import (
	"time"

	"github.com/crenwick/taxonvault/internal/repository"
)

// Encoded is the result of serializing and compressing a dataset.
type Encoded struct {
	// Payload is the gzip-compressed canonical byte stream.
	Payload []byte

	// OriginalSize is the uncompressed byte count.
	OriginalSize int64

	// CompressedSize is len(Payload).
	CompressedSize int64

	// Checksum is the SHA-256 hex digest of the uncompressed bytes.
	Checksum string
}

// SettingsUpdate is a partial update to the backup settings singleton.
// Nil fields are left unchanged.
type SettingsUpdate struct {
	MaxBackups              *int `json:"max_backups"`
	AutoBackupIntervalHours *int `json:"auto_backup_interval_hours"`
}

// RestoreResult describes the outcome of a restore operation.
type RestoreResult struct {
	// Success indicates whether the live dataset was replaced.
	Success bool `json:"success"`

	// OperationID identifies this restore attempt in logs.
	OperationID string `json:"operation_id"`

	// BackupID and VersionNumber identify the restored backup.
	BackupID      int64 `json:"backup_id"`
	VersionNumber int64 `json:"version_number,omitempty"`

	// SafetyBackupID is the SYSTEM snapshot taken before the restore.
	// Zero if the restore failed before the safety snapshot was stored.
	SafetyBackupID int64 `json:"safety_backup_id,omitempty"`

	// RestoredCounts are the entity counts of the restored dataset.
	RestoredCounts repository.EntityCounts `json:"restored_counts,omitempty"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`

	// Message summarizes the outcome, including the recovery path on failure.
	Message string `json:"message"`

	// Duration is how long the restore took.
	Duration time.Duration `json:"duration"`

	// DurationString is a human-readable duration.
	DurationString string `json:"duration_string"`
}
