package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source, index or storage backend.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSyncInProgress indicates a sync is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrCheckpointExists indicates an initial sync was requested while a token is stored.
	ErrCheckpointExists = errors.New("checkpoint already exists")

	// ErrNoCheckpoint indicates an incremental sync was requested without a stored token.
	ErrNoCheckpoint = errors.New("no checkpoint")

	// Fetch Errors.

	// ErrTransientFetch indicates a fetch failed for a reason that may clear on retry.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrFatalFetch indicates a fetch failed and retrying will not help.
	ErrFatalFetch = errors.New("fatal fetch error")

	// ErrTokenExpired indicates the content store rejected the continuation token.
	ErrTokenExpired = errors.New("sync token expired")

	// ErrAuthInvalid indicates the content store rejected the credentials.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Index and Storage Errors.

	// ErrIndexWrite indicates the search index rejected an upsert or delete.
	ErrIndexWrite = errors.New("index write failed")

	// ErrPersistence indicates the checkpoint could not be read or written.
	ErrPersistence = errors.New("checkpoint persistence failed")
)

// FetchError describes a failed change-set fetch.
type FetchError struct {
	// Transient is true when a retry may succeed.
	Transient bool

	// TokenExpired is true when the continuation token is no longer accepted.
	TokenExpired bool

	// Unauthorized is true when credentials were rejected.
	Unauthorized bool

	// StatusCode is the HTTP status, if any.
	StatusCode int

	// RetryAfter is a server hint for when to retry. Zero if none.
	RetryAfter time.Duration

	// Err is the underlying cause.
	Err error
}

func (e *FetchError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch error (status %d): %v", kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch error: %v", kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the fetch sentinels so callers can use errors.Is.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransientFetch:
		return e.Transient
	case ErrFatalFetch:
		return !e.Transient
	case ErrTokenExpired:
		return e.TokenExpired
	case ErrAuthInvalid:
		return e.Unauthorized
	case ErrRateLimited:
		return e.StatusCode == 429
	}
	return false
}

// NewTransientFetchError wraps err as a retryable fetch failure.
func NewTransientFetchError(err error) *FetchError {
	return &FetchError{Transient: true, Err: err}
}

// NewFatalFetchError wraps err as a non-retryable fetch failure.
func NewFatalFetchError(err error) *FetchError {
	return &FetchError{Err: err}
}

// NewTokenExpiredError reports that the store no longer accepts a token.
func NewTokenExpiredError(err error) *FetchError {
	return &FetchError{TokenExpired: true, Err: err}
}

// IndexWriteError describes a failed index mutation.
// Upserted and Deleted count what had been applied before the failure.
type IndexWriteError struct {
	// Op is "upsert" or "delete".
	Op string

	// Batch is the zero-based index of the failing batch.
	Batch int

	// Upserted counts records written before the failure.
	Upserted int

	// Deleted counts ids removed before the failure.
	Deleted int

	// Err is the underlying cause.
	Err error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index %s batch %d: %v", e.Op, e.Batch, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// Is matches ErrIndexWrite.
func (e *IndexWriteError) Is(target error) bool {
	return target == ErrIndexWrite
}

// PersistenceError describes a failed checkpoint read or write.
type PersistenceError struct {
	// Op is "load", "save" or "clear".
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFetch)
}

// IsTokenExpired reports whether err means the token must be discarded.
func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// RetryAfter extracts a server retry hint from err, if present.
func RetryAfter(err error) time.Duration {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.RetryAfter
	}
	return 0
}
