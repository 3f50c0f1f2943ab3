package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crenwick/taxonvault/internal/repository"
)

func testBackup(version string) *repository.Backup {
	return &repository.Backup{
		TriggerType:    repository.TriggerManual,
		Description:    "test backup " + version,
		Payload:        []byte("compressed-bytes-" + version),
		OriginalSize:   1000,
		CompressedSize: 100,
		Checksum:       "checksum-" + version,
		EntityCounts:   repository.EntityCounts{Products: 3, Suppliers: 1},
	}
}

func TestBackupRepositoryInsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)
	ctx := context.Background()

	b := testBackup("a")
	if err := repo.Insert(ctx, b); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if b.ID == 0 {
		t.Fatal("Insert() did not assign an ID")
	}
	if b.VersionNumber != 1 {
		t.Errorf("first version = %d, want 1", b.VersionNumber)
	}

	got, err := repo.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Payload) != "compressed-bytes-a" {
		t.Errorf("payload = %q", got.Payload)
	}
	if got.Checksum != "checksum-a" {
		t.Errorf("checksum = %q", got.Checksum)
	}
	if got.EntityCounts != b.EntityCounts {
		t.Errorf("entity counts = %+v, want %+v", got.EntityCounts, b.EntityCounts)
	}
	if got.TriggerType != repository.TriggerManual {
		t.Errorf("trigger = %s", got.TriggerType)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}
}

func TestBackupRepositoryCreatedAtRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)
	ctx := context.Background()

	b := testBackup("t")
	b.CreatedAt = time.Date(2026, 7, 9, 3, 21, 55, 123456000, time.UTC)
	if err := repo.Insert(ctx, b); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.CreatedAt.Equal(b.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, b.CreatedAt)
	}
}

func TestBackupRepositoryVersionSequenceSurvivesDeletion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)
	ctx := context.Background()

	b1 := testBackup("1")
	b2 := testBackup("2")
	if err := repo.Insert(ctx, b1); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Insert(ctx, b2); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := repo.Delete(ctx, b2.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	b3 := testBackup("3")
	if err := repo.Insert(ctx, b3); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if b3.VersionNumber != 3 {
		t.Errorf("version after deletion = %d, want 3 (never reused)", b3.VersionNumber)
	}
}

func TestBackupRepositoryListExcludesPayload(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		if err := repo.Insert(ctx, testBackup(v)); err != nil {
			t.Fatalf("Insert(%s) error = %v", v, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, b := range list {
		if b.Payload != nil {
			t.Errorf("list[%d] carries a payload", i)
		}
		if b.VersionNumber != int64(i+1) {
			t.Errorf("list[%d].VersionNumber = %d, want ascending order", i, b.VersionNumber)
		}
	}
}

func TestBackupRepositoryGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)

	_, err := repo.Get(context.Background(), 42)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestBackupRepositoryDeleteNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)

	err := repo.Delete(context.Background(), 42)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestBackupRepositoryDeleteOldest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c", "d"} {
		if err := repo.Insert(ctx, testBackup(v)); err != nil {
			t.Fatalf("Insert(%s) error = %v", v, err)
		}
	}

	deleted, err := repo.DeleteOldest(ctx, 2)
	if err != nil {
		t.Fatalf("DeleteOldest() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	list, _ := repo.List(ctx)
	if len(list) != 2 {
		t.Fatalf("remaining = %d, want 2", len(list))
	}
	if list[0].VersionNumber != 3 || list[1].VersionNumber != 4 {
		t.Errorf("survivors = %d, %d, want 3, 4", list[0].VersionNumber, list[1].VersionNumber)
	}
}

func TestBackupRepositoryCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("empty count = %d", count)
	}

	if err := repo.Insert(ctx, testBackup("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	count, _ = repo.Count(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestBackupRepositorySettings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)
	ctx := context.Background()

	settings, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	defaults := repository.DefaultBackupSettings()
	if *settings != defaults {
		t.Errorf("first settings = %+v, want defaults %+v", settings, defaults)
	}

	settings.MaxBackups = 25
	settings.AutoBackupIntervalHours = 6
	if err := repo.UpdateSettings(ctx, settings); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	got, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	if got.MaxBackups != 25 || got.AutoBackupIntervalHours != 6 {
		t.Errorf("settings = %+v", got)
	}
}

func TestBackupRepositorySettingsUpdateKeepsVersionSequence(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBackupRepository(db)
	ctx := context.Background()

	if err := repo.Insert(ctx, testBackup("a")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	s, _ := repo.GetSettings(ctx)
	s.MaxBackups = 5
	if err := repo.UpdateSettings(ctx, s); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	b := testBackup("b")
	if err := repo.Insert(ctx, b); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if b.VersionNumber != 2 {
		t.Errorf("version after settings update = %d, want 2", b.VersionNumber)
	}
}
