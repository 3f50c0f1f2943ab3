package backup

import (
	"context"
	"log/slog"
	"time"

	"github.com/crenwick/taxonvault/internal/repository"
)

// Builder produces backup records from the live dataset. Every snapshot
// reads the full dataset in one consistent view, encodes it, and hands the
// result to the store.
type Builder struct {
	provider repository.DatasetProvider
	store    *Store
}

func NewBuilder(provider repository.DatasetProvider, store *Store) *Builder {
	return &Builder{provider: provider, store: store}
}

// Build captures the current dataset and persists it as a new backup record.
// If the dataset cannot be read, no record is created.
func (b *Builder) Build(ctx context.Context, trigger repository.TriggerType, description string) (*repository.Backup, error) {
	start := time.Now()

	ds, err := b.provider.ReadAll(ctx)
	if err != nil {
		return nil, &ProviderError{Op: "read", Err: err}
	}

	enc, err := EncodeDataset(ds)
	if err != nil {
		return nil, err
	}

	backup, err := b.store.Create(ctx, trigger, description, enc, ds.Counts())
	if err != nil {
		return nil, err
	}

	slog.Info("backup created",
		"backup_id", backup.ID,
		"version", backup.VersionNumber,
		"trigger", string(trigger),
		"entities", backup.EntityCounts.Total(),
		"original_size", enc.OriginalSize,
		"compressed_size", enc.CompressedSize,
		"compression_ratio", backup.CompressionRatio(),
		"duration", time.Since(start).String())

	return backup, nil
}
