package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/crenwick/taxonvault/internal/repository"
)

// BackupRepository is a mock implementation of repository.BackupRepository.
// Records live in memory; the version counter behaves like the persisted
// sequence (never reused after deletion).
type BackupRepository struct {
	mu          sync.RWMutex
	backups     map[int64]*repository.Backup
	nextID      int64
	nextVersion int64
	settings    *repository.BackupSettings

	// Error injection
	InsertError       error
	ListError         error
	GetError          error
	DeleteError       error
	DeleteOldestError error
	GetSettingsError  error
	UpdateSettingsErr error
}

// NewBackupRepository creates an empty mock backup repository.
func NewBackupRepository() *BackupRepository {
	return &BackupRepository{
		backups:     make(map[int64]*repository.Backup),
		nextID:      1,
		nextVersion: 1,
	}
}

// Insert stores a backup and assigns ID and version number.
func (r *BackupRepository) Insert(ctx context.Context, b *repository.Backup) error {
	if r.InsertError != nil {
		return r.InsertError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b.ID = r.nextID
	b.VersionNumber = r.nextVersion
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	r.nextID++
	r.nextVersion++

	stored := *b
	stored.Payload = append([]byte(nil), b.Payload...)
	r.backups[b.ID] = &stored
	return nil
}

// List returns stored backups without payloads, ordered by version number.
func (r *BackupRepository) List(ctx context.Context) ([]repository.Backup, error) {
	if r.ListError != nil {
		return nil, r.ListError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Backup, 0, len(r.backups))
	for _, b := range r.backups {
		summary := *b
		summary.Payload = nil
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

// Get returns a stored backup including its payload.
func (r *BackupRepository) Get(ctx context.Context, id int64) (*repository.Backup, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *b
	out.Payload = append([]byte(nil), b.Payload...)
	return &out, nil
}

// Delete removes a stored backup.
func (r *BackupRepository) Delete(ctx context.Context, id int64) error {
	if r.DeleteError != nil {
		return r.DeleteError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.backups[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.backups, id)
	return nil
}

// DeleteOldest removes the n backups with the lowest version numbers.
func (r *BackupRepository) DeleteOldest(ctx context.Context, n int) (int, error) {
	if r.DeleteOldestError != nil {
		return 0, r.DeleteOldestError
	}
	if n <= 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := make([]*repository.Backup, 0, len(r.backups))
	for _, b := range r.backups {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].VersionNumber < ordered[j].VersionNumber })

	deleted := 0
	for _, b := range ordered {
		if deleted >= n {
			break
		}
		delete(r.backups, b.ID)
		deleted++
	}
	return deleted, nil
}

// Count returns the number of stored backups.
func (r *BackupRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backups), nil
}

// GetSettings returns the settings singleton, defaulting on first use.
func (r *BackupRepository) GetSettings(ctx context.Context) (*repository.BackupSettings, error) {
	if r.GetSettingsError != nil {
		return nil, r.GetSettingsError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings == nil {
		defaults := repository.DefaultBackupSettings()
		r.settings = &defaults
	}
	out := *r.settings
	return &out, nil
}

// UpdateSettings stores the settings singleton.
func (r *BackupRepository) UpdateSettings(ctx context.Context, s *repository.BackupSettings) error {
	if r.UpdateSettingsErr != nil {
		return r.UpdateSettingsErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *s
	r.settings = &stored
	return nil
}

// Ensure BackupRepository implements repository.BackupRepository.
var _ repository.BackupRepository = (*BackupRepository)(nil)
