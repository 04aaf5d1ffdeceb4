// Package store defines the uniform contract every unimart backend
// implements: document-level CRUD with a shared filter model, normalized
// error sentinels, and the change-notification types delivered to
// subscribers.
//
// Two adapters implement [Backend]: the remote document database
// ([github.com/unimart/unimart/pkg/store/remote]) and the embedded local
// object store ([github.com/unimart/unimart/pkg/store/local]). The facade
// ([github.com/unimart/unimart/pkg/store/dual]) implements it as well, so
// callers are blind to the backend choice. Typed access goes through the
// package-level generics in typed.go.
package store

import "context"

// Backend is the document-level CRUD surface shared by every adapter.
//
// Documents are open maps keyed by the stable field names in
// [github.com/unimart/unimart/pkg/models]. Returned documents are copies
// owned by the caller, never live views into backend state.
type Backend interface {
	// Add inserts a document and returns its key. A caller-supplied key
	// (the collection's key field) is honored and fails with
	// ErrDuplicateID on reuse; otherwise the backend assigns one.
	Add(ctx context.Context, collection string, doc map[string]any) (string, error)

	// Get returns every document in the collection matching the filter.
	// A nil filter matches everything. Missing collections read as empty
	// unless the backend is in strict mode.
	Get(ctx context.Context, collection string, f *Filter) ([]map[string]any, error)

	// Update merges patch into the document with the given key and fails
	// with ErrNotFound when no such key exists.
	Update(ctx context.Context, collection, key string, patch map[string]any) error

	// Delete removes the document with the given key. Deleting an absent
	// key succeeds silently.
	Delete(ctx context.Context, collection, key string) error

	// Migrate brings the backend's schema to the current version. Only
	// additive changes are permitted; existing records are preserved.
	Migrate(ctx context.Context) error

	// Close releases backend resources. Safe to call more than once.
	Close() error
}

// ChangeStreamer is implemented by backends with server-pushed change
// streams. Backends without one (the embedded store) are polled by the
// subscription router instead.
type ChangeStreamer interface {
	// Changes opens a change stream for one collection. Events arrive in
	// commit order. The returned stop function ends the stream and closes
	// the channel; it is idempotent.
	Changes(ctx context.Context, collection string) (<-chan Event, func(), error)
}
