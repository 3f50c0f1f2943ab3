package backup

import (
	"errors"
	"fmt"
)

// ErrRestoreInProgress indicates a restore is already running. Callers may
// retry later; concurrent restores are rejected, never queued.
var ErrRestoreInProgress = errors.New("another restore is already in progress")

// IntegrityError indicates a checksum mismatch or a corrupted/unreadable
// payload. It is always fatal for the operation that detected it.
type IntegrityError struct {
	// Op is the operation that detected the corruption: "restore",
	// "export", "import", or "decode".
	Op string

	// Expected and Actual are the hex digests, when a comparison happened.
	Expected string
	Actual   string

	// Reason describes corruption found before a digest comparison was
	// possible (truncated stream, bad container header).
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("integrity check failed during %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("integrity check failed during %s: checksum mismatch (expected %s, got %s)", e.Op, e.Expected, e.Actual)
}

// ValidationError indicates malformed input, e.g. settings outside their
// allowed range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ProviderError indicates the dataset provider failed a read or replace.
// For reads no backup record is created; for replace failures the prior
// live dataset remains intact.
type ProviderError struct {
	// Op is "read" or "replace".
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("dataset provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
