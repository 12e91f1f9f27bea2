package feedcache

import (
	"errors"
	"fmt"
)

// Common errors returned by the feedcache client.
var (
	// ErrNotFound is returned when an item or cursor is not found.
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrOffline is returned when a network load is attempted without a source.
	ErrOffline = errors.New("operation unavailable in offline mode")

	// ErrInvalidLabel is returned when a partition label is malformed.
	ErrInvalidLabel = errors.New("invalid partition label")

	// ErrInvalidPageSize is returned when a page size is out of range.
	ErrInvalidPageSize = errors.New("page size must be between 0 and 100")

	// ErrUnsupportedExport is returned for an unknown export version.
	ErrUnsupportedExport = errors.New("unsupported export version")
)

// ValidationError is returned when configuration or feed validation fails.
// Scope names what was validated ("config" or "feed").
// Extractable via errors.As().
type ValidationError struct {
	Scope   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	scope := e.Scope
	if scope == "" {
		scope = "validation"
	}
	return fmt.Sprintf("%s: %s: %s", scope, e.Field, e.Message)
}

// FetchError is returned by HTTPSource when a page cannot be fetched.
// Extractable via errors.As(). Supports Unwrap().
type FetchError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch: %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("fetch: %s failed (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrorKind classifies why a load cycle failed.
type ErrorKind int

const (
	// KindUnclassified covers failures that are neither fetch nor storage
	// failures. Handled like KindTransientFetch.
	KindUnclassified ErrorKind = iota

	// KindTransientFetch is a remote source failure. Re-running the same load
	// type may succeed.
	KindTransientFetch

	// KindStorage is a local store transaction failure. Not retried: the state
	// of the next attempt cannot be vouched for.
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransientFetch:
		return "transient_fetch"
	case KindStorage:
		return "storage"
	default:
		return "unclassified"
	}
}

// LoadError is returned by Mediator.Load when a cycle fails.
// Extractable via errors.As(). Supports Unwrap().
type LoadError struct {
	Label    string
	LoadType LoadType
	Kind     ErrorKind
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load: %s %s (%s): %v", e.LoadType, e.Label, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Retryable reports whether re-invoking the same load may succeed.
func (e *LoadError) Retryable() bool {
	return e.Kind != KindStorage
}

// IsRetryable reports whether err is a LoadError that may be retried.
func IsRetryable(err error) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Retryable()
	}
	return false
}
