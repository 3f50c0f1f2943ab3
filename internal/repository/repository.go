// Package repository defines interfaces for data access operations.
// This package provides abstractions for database operations so that the
// backup engine never issues SQL directly: it talks to a DatasetProvider for
// the live catalog and to a BackupRepository for stored backup records.
package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/crenwick/taxonvault/internal/models"
)

// Common errors returned by repository operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrNilDatabase is returned when a nil database connection is provided.
	ErrNilDatabase = errors.New("nil database connection")
)

// Dataset is a point-in-time copy of every entity table in the catalog.
// Slices are ordered by entity ID ascending so that two datasets with the
// same logical content serialize to the same bytes.
type Dataset struct {
	Products               []models.Product               `json:"products"`
	Suppliers              []models.Supplier              `json:"suppliers"`
	TreeNodes              []models.TreeNode              `json:"tree_nodes"`
	CustomFieldDefinitions []models.CustomFieldDefinition `json:"custom_field_definitions"`
	AppSettings            []models.AppSetting            `json:"app_settings"`
}

// Counts returns per-entity-kind record counts for this dataset.
func (d *Dataset) Counts() EntityCounts {
	return EntityCounts{
		Products:               len(d.Products),
		Suppliers:              len(d.Suppliers),
		TreeNodes:              len(d.TreeNodes),
		CustomFieldDefinitions: len(d.CustomFieldDefinitions),
		AppSettings:            len(d.AppSettings),
	}
}

// EntityCounts maps entity kinds to record counts. Stored alongside each
// backup so previews never have to decompress the payload.
type EntityCounts struct {
	Products               int `json:"products"`
	Suppliers              int `json:"suppliers"`
	TreeNodes              int `json:"tree_nodes"`
	CustomFieldDefinitions int `json:"custom_field_definitions"`
	AppSettings            int `json:"app_settings"`
}

// Total returns the total record count across all entity kinds.
func (c EntityCounts) Total() int {
	return c.Products + c.Suppliers + c.TreeNodes + c.CustomFieldDefinitions + c.AppSettings
}

// TriggerType represents how a backup was triggered.
type TriggerType string

const (
	// TriggerAuto indicates the backup was created by the scheduler.
	TriggerAuto TriggerType = "AUTO"

	// TriggerManual indicates the backup was requested by a user.
	TriggerManual TriggerType = "MANUAL"

	// TriggerSystem indicates the backup was created by the engine itself,
	// e.g. the safety snapshot taken before a restore.
	TriggerSystem TriggerType = "SYSTEM"
)

// IsValid returns true if the trigger type is one of the known values.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerAuto, TriggerManual, TriggerSystem:
		return true
	default:
		return false
	}
}

// Backup is a stored dataset snapshot. Immutable once created, except for
// deletion. Payload holds the compressed canonical byte stream; Checksum is
// the SHA-256 hex digest of the uncompressed bytes.
type Backup struct {
	ID             int64        `json:"id"`
	VersionNumber  int64        `json:"version_number"`
	CreatedAt      time.Time    `json:"created_at"`
	TriggerType    TriggerType  `json:"trigger_type"`
	Description    string       `json:"description"`
	Payload        []byte       `json:"-"`
	OriginalSize   int64        `json:"original_size"`
	CompressedSize int64        `json:"compressed_size"`
	Checksum       string       `json:"checksum"`
	EntityCounts   EntityCounts `json:"entity_counts"`
}

// CompressionRatio returns the space saving as a whole percentage,
// round((1 - compressed/original) * 100). Zero when the original size is
// unknown.
func (b *Backup) CompressionRatio() int {
	if b.OriginalSize <= 0 {
		return 0
	}
	return int(math.Round((1 - float64(b.CompressedSize)/float64(b.OriginalSize)) * 100))
}

// BackupSettings is the singleton retention and scheduling configuration.
type BackupSettings struct {
	MaxBackups              int `json:"max_backups"`
	AutoBackupIntervalHours int `json:"auto_backup_interval_hours"`
}

// DefaultBackupSettings returns the settings used before any explicit update.
func DefaultBackupSettings() BackupSettings {
	return BackupSettings{
		MaxBackups:              10,
		AutoBackupIntervalHours: 24,
	}
}

// DatasetProvider exposes the two whole-dataset operations the backup engine
// needs from the catalog. Implementations must make ReadAll a logically
// consistent multi-entity read and ReplaceAll an all-or-nothing replacement.
type DatasetProvider interface {
	// ReadAll returns a consistent snapshot of every entity table, each
	// slice ordered by ID ascending.
	ReadAll(ctx context.Context) (*Dataset, error)

	// ReplaceAll atomically replaces the entire live dataset. On error the
	// previous state remains intact.
	ReplaceAll(ctx context.Context, ds *Dataset) error
}

// BackupRepository persists backup records and the settings singleton.
// Version number allocation is the repository's job so that version numbers
// are never reused, even after deletion.
type BackupRepository interface {
	// Insert persists a new backup record, assigning its ID and the next
	// version number from a persisted sequence.
	Insert(ctx context.Context, b *Backup) error

	// List returns metadata for all backups (payload excluded), ordered by
	// version number ascending.
	List(ctx context.Context) ([]Backup, error)

	// Get returns a backup including its payload, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Backup, error)

	// Delete removes a backup, or returns ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// DeleteOldest removes the n backups with the lowest version numbers
	// and returns how many were actually deleted.
	DeleteOldest(ctx context.Context, n int) (int, error)

	// Count returns the number of stored backups.
	Count(ctx context.Context) (int, error)

	// GetSettings returns the settings singleton, creating it with defaults
	// on first use.
	GetSettings(ctx context.Context) (*BackupSettings, error)

	// UpdateSettings persists the settings singleton.
	UpdateSettings(ctx context.Context, s *BackupSettings) error
}
