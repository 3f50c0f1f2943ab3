package backup

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/crenwick/taxonvault/internal/metrics"
	"github.com/crenwick/taxonvault/internal/repository"
)

// Exchange packs backups into a self-describing binary container for
// transfer between instances, and unpacks such containers back into new
// backup records. Importing never restores; it only adds a record.
//
// Container layout, big-endian:
//
//	offset  size  field
//	0       4     magic "TVBX"
//	4       2     format version (currently 1)
//	6       2     reserved, zero
//	8       8     source version number
//	16      8     original (uncompressed) size
//	24      8     compressed size
//	32      32    SHA-256 checksum, raw bytes
//	64      ...   compressed payload
const (
	exchangeMagic         = "TVBX"
	exchangeFormatVersion = 1
	exchangeHeaderSize    = 64
)

type Exchange struct {
	store *Store
}

func NewExchange(store *Store) *Exchange {
	return &Exchange{store: store}
}

// Export packs a backup into the container format. The payload is verified
// against its checksum before export; a corrupted record is never exported.
func (x *Exchange) Export(ctx context.Context, id int64) ([]byte, *repository.Backup, error) {
	b, err := x.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	_, rawLen, err := decodeDataset(b.Payload, b.Checksum)
	if err != nil {
		var ie *IntegrityError
		if errors.As(err, &ie) {
			metrics.IntegrityFailuresTotal.WithLabelValues("export").Inc()
			return nil, nil, &IntegrityError{Op: "export", Expected: ie.Expected, Actual: ie.Actual, Reason: ie.Reason}
		}
		return nil, nil, err
	}

	sum, err := hex.DecodeString(b.Checksum)
	if err != nil || len(sum) != 32 {
		metrics.IntegrityFailuresTotal.WithLabelValues("export").Inc()
		return nil, nil, &IntegrityError{Op: "export", Reason: "stored checksum is malformed"}
	}

	out := make([]byte, exchangeHeaderSize+len(b.Payload))
	copy(out[0:4], exchangeMagic)
	binary.BigEndian.PutUint16(out[4:6], exchangeFormatVersion)
	binary.BigEndian.PutUint64(out[8:16], uint64(b.VersionNumber))
	binary.BigEndian.PutUint64(out[16:24], uint64(rawLen))
	binary.BigEndian.PutUint64(out[24:32], uint64(len(b.Payload)))
	copy(out[32:64], sum)
	copy(out[exchangeHeaderSize:], b.Payload)

	return out, b, nil
}

// Import validates a container, verifies its payload, and stores it as a new
// backup record with a freshly allocated version number. The source instance's
// version number is recorded in the description only.
func (x *Exchange) Import(ctx context.Context, data []byte) (*repository.Backup, error) {
	if len(data) < exchangeHeaderSize {
		return x.importFailure("container is truncated")
	}
	if string(data[0:4]) != exchangeMagic {
		return x.importFailure("not a backup container")
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != exchangeFormatVersion {
		return x.importFailure(fmt.Sprintf("unsupported container format version %d", v))
	}
	if v := binary.BigEndian.Uint16(data[6:8]); v != 0 {
		return x.importFailure("reserved header bytes are not zero")
	}

	srcVersion := binary.BigEndian.Uint64(data[8:16])
	originalSize := binary.BigEndian.Uint64(data[16:24])
	compressedSize := binary.BigEndian.Uint64(data[24:32])
	checksum := hex.EncodeToString(data[32:64])
	payload := data[exchangeHeaderSize:]

	if uint64(len(payload)) != compressedSize {
		return x.importFailure(fmt.Sprintf("payload length %d does not match declared size %d", len(payload), compressedSize))
	}

	ds, rawLen, err := decodeDataset(payload, checksum)
	if err != nil {
		var ie *IntegrityError
		if errors.As(err, &ie) {
			metrics.IntegrityFailuresTotal.WithLabelValues("import").Inc()
			return nil, &IntegrityError{Op: "import", Expected: ie.Expected, Actual: ie.Actual, Reason: ie.Reason}
		}
		return nil, err
	}

	// The declared original size sits outside the checksummed content, so it
	// gets cross-checked against the verified decompressed length.
	if uint64(rawLen) != originalSize {
		return x.importFailure(fmt.Sprintf("declared original size %d does not match decompressed length %d", originalSize, rawLen))
	}

	// Sizes come from the verified content, never from the header.
	enc := &Encoded{
		Payload:        payload,
		OriginalSize:   rawLen,
		CompressedSize: int64(len(payload)),
		Checksum:       checksum,
	}

	desc := fmt.Sprintf("Imported backup (source version %d)", srcVersion)
	return x.store.Create(ctx, repository.TriggerManual, desc, enc, ds.Counts())
}

func (x *Exchange) importFailure(reason string) (*repository.Backup, error) {
	metrics.IntegrityFailuresTotal.WithLabelValues("import").Inc()
	return nil, &IntegrityError{Op: "import", Reason: reason}
}
