package taxonvault

import (
	"errors"
	"fmt"
)

// Standard errors returned by the SDK.
var (
	// ErrNotFound indicates the requested backup was not found.
	ErrNotFound = errors.New("not found")
	// ErrRestoreInProgress indicates another restore is already running.
	ErrRestoreInProgress = errors.New("restore in progress")
	// ErrIntegrity indicates the server rejected a payload as corrupted.
	ErrIntegrity = errors.New("integrity check failed")
)

// APIError represents an error response from the TaxonVault API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Message is the error message from the server.
	Message string
	// Err is the underlying error category.
	Err error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (status %d)", e.Err.Error(), e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ValidationError represents an input validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}
