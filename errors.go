package searchsync

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for common conditions
var (
	// Data errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidMessage    = errors.New("invalid queue message")
	ErrUnknownEntityType = errors.New("entity type not registered")

	// Backend errors
	ErrBackendUnavailable = errors.New("search backend unavailable")
	ErrStoreUnavailable   = errors.New("entity store unavailable")
	ErrTimeout            = errors.New("operation timed out")
	ErrBulkErrors         = errors.New("bulk response contains item errors")

	// Schema errors
	ErrNoDocumentField       = errors.New("no document field defined")
	ErrMultipleDocumentFields = errors.New("more than one document field defined")

	// Setup/configuration errors
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNotInitialized = errors.New("router not initialized")
)

// MappingConflictError reports a field whose deployed schema differs
// incompatibly from the schema computed from the current field
// definitions. It is always fatal to Setup unless the backend is
// configured to fail silently, because the search engine itself never
// validates this.
type MappingConflictError struct {
	Index  string
	Field  string
	Before *FieldMapping
	After  *FieldMapping
}

func (e *MappingConflictError) Error() string {
	return fmt.Sprintf("mapping conflict for the %q field in index %q: run the check command", e.Field, e.Index)
}

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// Common error checking helpers

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMappingConflict checks if an error is a schema mapping conflict
func IsMappingConflict(err error) bool {
	var conflict *MappingConflictError
	return errors.As(err, &conflict)
}

// IsTransient reports whether an error is expected to clear on retry:
// network and connectivity failures, timeouts, and data-store
// availability problems. Everything else is treated as permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsPermanent reports whether an error should not be retried.
func IsPermanent(err error) bool {
	return err != nil && !IsTransient(err)
}
