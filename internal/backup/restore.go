package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/crenwick/taxonvault/internal/metrics"
	"github.com/crenwick/taxonvault/internal/repository"
)

// Engine performs restore operations. At most one restore runs at a time;
// concurrent attempts fail immediately with ErrRestoreInProgress.
type Engine struct {
	store     *Store
	builder   *Builder
	provider  repository.DatasetProvider
	restoring atomic.Bool
}

func NewEngine(store *Store, builder *Builder, provider repository.DatasetProvider) *Engine {
	return &Engine{store: store, builder: builder, provider: provider}
}

// Restoring reports whether a restore is currently running.
func (e *Engine) Restoring() bool {
	return e.restoring.Load()
}

// Preview returns the stored entity counts and metadata of a backup without
// touching the live dataset.
func (e *Engine) Preview(ctx context.Context, id int64) (*repository.Backup, error) {
	b, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Payload = nil
	return b, nil
}

// Restore replaces the live dataset with the contents of the given backup.
// Order of operations: acquire the restore gate, load the target record,
// take a safety snapshot of the current dataset, verify and decode the
// target payload, then atomically replace the dataset. Nothing is mutated
// until the payload has passed verification.
func (e *Engine) Restore(ctx context.Context, id int64) (*RestoreResult, error) {
	if !e.restoring.CompareAndSwap(false, true) {
		return nil, ErrRestoreInProgress
	}
	defer e.restoring.Store(false)

	start := time.Now()
	result := &RestoreResult{
		OperationID: uuid.NewString(),
		BackupID:    id,
	}

	slog.Info("restore started", "operation_id", result.OperationID, "backup_id", id)

	target, err := e.store.Get(ctx, id)
	if err != nil {
		result.Message = "restore aborted before any data was modified"
		return e.fail(result, start, "failed", err)
	}
	result.VersionNumber = target.VersionNumber

	// Safety snapshot of the dataset as it is now, so the restore can be
	// undone by restoring the snapshot.
	safety, err := e.builder.Build(ctx, repository.TriggerSystem,
		fmt.Sprintf("Safety snapshot before restoring version %d", target.VersionNumber))
	if err != nil {
		result.Message = "restore aborted before any data was modified; the safety snapshot could not be created"
		return e.fail(result, start, "failed", fmt.Errorf("failed to create safety snapshot: %w", err))
	}
	result.SafetyBackupID = safety.ID

	ds, err := DecodeDataset(target.Payload, target.Checksum)
	if err != nil {
		var ie *IntegrityError
		if errors.As(err, &ie) {
			metrics.IntegrityFailuresTotal.WithLabelValues("restore").Inc()
			err = &IntegrityError{Op: "restore", Expected: ie.Expected, Actual: ie.Actual, Reason: ie.Reason}
		}
		result.Message = "restore aborted before any data was modified; the safety snapshot remains available"
		return e.fail(result, start, "integrity_failure", err)
	}

	if err := ctx.Err(); err != nil {
		result.Message = "restore aborted before any data was modified; the safety snapshot remains available"
		return e.fail(result, start, "cancelled", err)
	}

	// The replacement itself must not be interrupted by caller cancellation
	// once it has begun.
	if err := e.provider.ReplaceAll(context.WithoutCancel(ctx), ds); err != nil {
		result.Message = fmt.Sprintf("dataset replacement failed; restore the safety snapshot (backup %d) to recover", safety.ID)
		return e.fail(result, start, "failed", &ProviderError{Op: "replace", Err: err})
	}

	result.Success = true
	result.RestoredCounts = target.EntityCounts
	result.Duration = time.Since(start)
	result.DurationString = result.Duration.String()
	result.Message = fmt.Sprintf("restored version %d", target.VersionNumber)

	metrics.RestoresTotal.WithLabelValues("success").Inc()
	slog.Info("restore completed",
		"operation_id", result.OperationID,
		"backup_id", id,
		"version", target.VersionNumber,
		"safety_backup_id", safety.ID,
		"entities", target.EntityCounts.Total(),
		"duration", result.DurationString)

	return result, nil
}

func (e *Engine) fail(result *RestoreResult, start time.Time, status string, err error) (*RestoreResult, error) {
	result.Success = false
	result.Error = err.Error()
	result.Duration = time.Since(start)
	result.DurationString = result.Duration.String()

	metrics.RestoresTotal.WithLabelValues(status).Inc()
	slog.Error("restore failed",
		"operation_id", result.OperationID,
		"backup_id", result.BackupID,
		"status", status,
		"error", err)

	return result, err
}
