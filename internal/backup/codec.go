package backup

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"

	"github.com/crenwick/taxonvault/internal/models"
	"github.com/crenwick/taxonvault/internal/repository"
)

// maxDecodedSize caps decompression output so a corrupted or hostile payload
// cannot exhaust memory. 1 GiB is far beyond any real catalog dataset.
const maxDecodedSize = 1 << 30

// EncodeDataset serializes a dataset into its canonical byte stream,
// compresses it, and returns the payload together with sizes and the
// SHA-256 checksum of the uncompressed bytes. Pure transformation; the
// input dataset is not modified.
func EncodeDataset(ds *repository.Dataset) (*Encoded, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset cannot be nil")
	}

	raw, err := json.Marshal(canonicalize(ds))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize dataset: %w", err)
	}

	sum := sha256.Sum256(raw)

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress dataset: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compression: %w", err)
	}

	return &Encoded{
		Payload:        buf.Bytes(),
		OriginalSize:   int64(len(raw)),
		CompressedSize: int64(buf.Len()),
		Checksum:       hex.EncodeToString(sum[:]),
	}, nil
}

// DecodeDataset decompresses a payload, verifies the SHA-256 checksum of the
// decompressed bytes against expectedChecksum, and deserializes the dataset.
// On any mismatch or corruption it returns an IntegrityError and never a
// partially-decoded dataset.
func DecodeDataset(payload []byte, expectedChecksum string) (*repository.Dataset, error) {
	ds, _, err := decodeDataset(payload, expectedChecksum)
	return ds, err
}

// decodeDataset additionally returns the decompressed byte count, so callers
// can cross-check size claims made outside the checksummed content.
func decodeDataset(payload []byte, expectedChecksum string) (*repository.Dataset, int64, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, 0, &IntegrityError{Op: "decode", Reason: fmt.Sprintf("payload is not a valid compressed stream: %v", err)}
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize+1))
	if err != nil {
		return nil, 0, &IntegrityError{Op: "decode", Reason: fmt.Sprintf("payload decompression failed: %v", err)}
	}
	if len(raw) > maxDecodedSize {
		return nil, 0, &IntegrityError{Op: "decode", Reason: "decompressed payload exceeds size limit"}
	}

	sum := sha256.Sum256(raw)
	actual := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expectedChecksum)) != 1 {
		return nil, 0, &IntegrityError{Op: "decode", Expected: expectedChecksum, Actual: actual}
	}

	var ds repository.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, 0, &IntegrityError{Op: "decode", Reason: fmt.Sprintf("payload is not a valid dataset: %v", err)}
	}

	return canonicalize(&ds), int64(len(raw)), nil
}

// canonicalize returns a copy of the dataset with every entity slice sorted
// by ID and nil slices replaced by empty ones, so the serialized bytes are a
// function of logical content only.
func canonicalize(ds *repository.Dataset) *repository.Dataset {
	out := &repository.Dataset{
		Products:               append(ds.Products[:0:0], ds.Products...),
		Suppliers:              append(ds.Suppliers[:0:0], ds.Suppliers...),
		TreeNodes:              append(ds.TreeNodes[:0:0], ds.TreeNodes...),
		CustomFieldDefinitions: append(ds.CustomFieldDefinitions[:0:0], ds.CustomFieldDefinitions...),
		AppSettings:            append(ds.AppSettings[:0:0], ds.AppSettings...),
	}

	if out.Products == nil {
		out.Products = []models.Product{}
	}
	if out.Suppliers == nil {
		out.Suppliers = []models.Supplier{}
	}
	if out.TreeNodes == nil {
		out.TreeNodes = []models.TreeNode{}
	}
	if out.CustomFieldDefinitions == nil {
		out.CustomFieldDefinitions = []models.CustomFieldDefinition{}
	}
	if out.AppSettings == nil {
		out.AppSettings = []models.AppSetting{}
	}

	sort.Slice(out.Products, func(i, j int) bool { return out.Products[i].ID < out.Products[j].ID })
	sort.Slice(out.Suppliers, func(i, j int) bool { return out.Suppliers[i].ID < out.Suppliers[j].ID })
	sort.Slice(out.TreeNodes, func(i, j int) bool { return out.TreeNodes[i].ID < out.TreeNodes[j].ID })
	sort.Slice(out.CustomFieldDefinitions, func(i, j int) bool {
		return out.CustomFieldDefinitions[i].ID < out.CustomFieldDefinitions[j].ID
	})
	sort.Slice(out.AppSettings, func(i, j int) bool { return out.AppSettings[i].ID < out.AppSettings[j].ID })

	return out
}
