package backup

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/crenwick/taxonvault/internal/repository"
	"github.com/crenwick/taxonvault/internal/repository/mock"
)

func testExchange(t *testing.T) (*Exchange, *Store, *repository.Backup) {
	t.Helper()
	provider := mock.NewDatasetProvider(*testDataset())
	store := NewStore(mock.NewBackupRepository())
	builder := NewBuilder(provider, store)

	b, err := builder.Build(context.Background(), repository.TriggerManual, "for export")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return NewExchange(store), store, b
}

func TestExchangeRoundTrip(t *testing.T) {
	ctx := context.Background()
	x, store, b := testExchange(t)

	data, exported, err := x.Export(ctx, b.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exported.ID != b.ID {
		t.Errorf("exported ID = %d, want %d", exported.ID, b.ID)
	}
	if string(data[0:4]) != "TVBX" {
		t.Errorf("magic = %q, want TVBX", data[0:4])
	}

	imported, err := x.Import(ctx, data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	// Import allocates a fresh version; it never inherits the source's.
	if imported.VersionNumber <= b.VersionNumber {
		t.Errorf("imported version = %d, want > %d", imported.VersionNumber, b.VersionNumber)
	}
	if imported.TriggerType != repository.TriggerManual {
		t.Errorf("imported trigger = %s, want MANUAL", imported.TriggerType)
	}
	if imported.EntityCounts != b.EntityCounts {
		t.Errorf("imported counts = %+v, want %+v", imported.EntityCounts, b.EntityCounts)
	}
	if imported.Checksum != b.Checksum {
		t.Errorf("imported checksum = %s, want %s", imported.Checksum, b.Checksum)
	}

	// The imported record restores to the same dataset.
	stored, err := store.Get(ctx, imported.ID)
	if err != nil {
		t.Fatalf("Get(imported) error = %v", err)
	}
	ds, err := DecodeDataset(stored.Payload, stored.Checksum)
	if err != nil {
		t.Fatalf("DecodeDataset(imported) error = %v", err)
	}
	if ds.Counts() != testDataset().Counts() {
		t.Errorf("imported dataset counts = %+v", ds.Counts())
	}
}

func TestExchangeImportCorruptPayload(t *testing.T) {
	ctx := context.Background()
	x, store, b := testExchange(t)

	data, _, err := x.Export(ctx, b.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	countBefore := len(mustList(t, store))

	corrupted := append([]byte(nil), data...)
	corrupted[exchangeHeaderSize+len(corrupted[exchangeHeaderSize:])/2] ^= 0xFF

	_, err = x.Import(ctx, corrupted)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want *IntegrityError", err)
	}
	if ie.Op != "import" {
		t.Errorf("IntegrityError.Op = %q, want import", ie.Op)
	}

	if got := len(mustList(t, store)); got != countBefore {
		t.Errorf("store gained %d records from a rejected import", got-countBefore)
	}
}

func TestExchangeImportHeaderCorruption(t *testing.T) {
	ctx := context.Background()
	x, store, b := testExchange(t)

	data, _, err := x.Export(ctx, b.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	countBefore := len(mustList(t, store))

	// Every header byte except the source version field (8-16) is covered
	// by a verification; a single-bit flip anywhere in them must be caught.
	for offset := 0; offset < exchangeHeaderSize; offset++ {
		if offset >= 8 && offset < 16 {
			continue
		}

		corrupted := append([]byte(nil), data...)
		corrupted[offset] ^= 0x01

		_, err := x.Import(ctx, corrupted)
		var ie *IntegrityError
		if !errors.As(err, &ie) {
			t.Errorf("offset %d: error = %v, want *IntegrityError", offset, err)
		}
	}

	if got := len(mustList(t, store)); got != countBefore {
		t.Errorf("store gained %d records from rejected imports", got-countBefore)
	}
}

func TestExchangeImportSourceVersionIsAdvisory(t *testing.T) {
	ctx := context.Background()
	x, _, b := testExchange(t)

	data, _, err := x.Export(ctx, b.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	// The source version number only feeds the description; altering it
	// must not change the imported payload, sizes, or checksum.
	altered := append([]byte(nil), data...)
	altered[15] ^= 0x01

	imported, err := x.Import(ctx, altered)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if imported.Checksum != b.Checksum {
		t.Errorf("checksum = %s, want %s", imported.Checksum, b.Checksum)
	}
	if imported.OriginalSize != b.OriginalSize {
		t.Errorf("OriginalSize = %d, want %d", imported.OriginalSize, b.OriginalSize)
	}
	if imported.EntityCounts != b.EntityCounts {
		t.Errorf("counts = %+v, want %+v", imported.EntityCounts, b.EntityCounts)
	}
}

func TestExchangeImportSizesComeFromContent(t *testing.T) {
	ctx := context.Background()
	x, store, b := testExchange(t)

	data, _, err := x.Export(ctx, b.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	countBefore := len(mustList(t, store))

	// A corrupted declared original size must be rejected, not persisted.
	corrupted := append([]byte(nil), data...)
	corrupted[17] ^= 0xFF

	_, err = x.Import(ctx, corrupted)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want *IntegrityError", err)
	}
	if ie.Op != "import" {
		t.Errorf("IntegrityError.Op = %q, want import", ie.Op)
	}
	if got := len(mustList(t, store)); got != countBefore {
		t.Errorf("store gained %d records from a rejected import", got-countBefore)
	}

	// A clean import persists the sizes of the verified content.
	imported, err := x.Import(ctx, data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if imported.OriginalSize != b.OriginalSize {
		t.Errorf("OriginalSize = %d, want %d", imported.OriginalSize, b.OriginalSize)
	}
	if imported.CompressedSize != b.CompressedSize {
		t.Errorf("CompressedSize = %d, want %d", imported.CompressedSize, b.CompressedSize)
	}
}

func TestExchangeImportBadMagic(t *testing.T) {
	ctx := context.Background()
	x, _, b := testExchange(t)

	data, _, _ := x.Export(ctx, b.ID)
	bad := append([]byte(nil), data...)
	copy(bad[0:4], "ZIP!")

	_, err := x.Import(ctx, bad)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want *IntegrityError", err)
	}
}

func TestExchangeImportUnsupportedFormatVersion(t *testing.T) {
	ctx := context.Background()
	x, _, b := testExchange(t)

	data, _, _ := x.Export(ctx, b.ID)
	bad := append([]byte(nil), data...)
	binary.BigEndian.PutUint16(bad[4:6], 99)

	_, err := x.Import(ctx, bad)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want *IntegrityError", err)
	}
}

func TestExchangeImportTruncated(t *testing.T) {
	ctx := context.Background()
	x, _, b := testExchange(t)

	data, _, _ := x.Export(ctx, b.ID)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"partial header", data[:20]},
		{"missing payload tail", data[:len(data)-5]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := x.Import(ctx, tt.data)
			var ie *IntegrityError
			if !errors.As(err, &ie) {
				t.Errorf("error = %v, want *IntegrityError", err)
			}
		})
	}
}

func TestExchangeExportMissingBackup(t *testing.T) {
	x, _, _ := testExchange(t)

	_, _, err := x.Export(context.Background(), 999)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestExchangeHeaderFields(t *testing.T) {
	ctx := context.Background()
	x, _, b := testExchange(t)

	data, _, err := x.Export(ctx, b.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if v := binary.BigEndian.Uint16(data[4:6]); v != 1 {
		t.Errorf("format version = %d, want 1", v)
	}
	if got := binary.BigEndian.Uint64(data[8:16]); got != uint64(b.VersionNumber) {
		t.Errorf("header version number = %d, want %d", got, b.VersionNumber)
	}
	if got := binary.BigEndian.Uint64(data[24:32]); got != uint64(b.CompressedSize) {
		t.Errorf("header compressed size = %d, want %d", got, b.CompressedSize)
	}
	if got := int64(len(data) - exchangeHeaderSize); got != b.CompressedSize {
		t.Errorf("payload length = %d, want %d", got, b.CompressedSize)
	}
}

func mustList(t *testing.T, store *Store) []repository.Backup {
	t.Helper()
	backups, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return backups
}
