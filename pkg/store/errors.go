package store

import "errors"

// Errors surfaced by the data layer. Adapters normalize native failures
// to these sentinels; callers test with errors.Is.
var (
	// ErrNotFound is returned when update or delete targets a missing key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned when an add reuses an existing key.
	ErrDuplicateID = errors.New("id already in use")

	// ErrCollectionMissing is returned in strict mode when the embedded
	// store does not hold the named collection. Outside strict mode a
	// missing collection reads as empty.
	ErrCollectionMissing = errors.New("collection missing")

	// ErrTransient marks a network or otherwise retryable remote failure.
	ErrTransient = errors.New("transient backend failure")

	// ErrQuotaExceeded marks a remote-side quota rejection. The facade
	// reacts by demoting the session to local-only.
	ErrQuotaExceeded = errors.New("remote quota exceeded")

	// ErrInvalidFilter is returned for operator/value combinations the
	// filter model does not support.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrPermissionDenied is returned when the backend refuses the
	// operation outright.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnknownCollection is returned for collection names outside the
	// closed set.
	ErrUnknownCollection = errors.New("unknown collection")
)
