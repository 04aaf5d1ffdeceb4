// Package local implements the embedded object store behind the unimart
// data layer: one SQLite database holding every collection as a table of
// JSON documents keyed by the collection's key field.
//
// The store is persistent, single-writer, and versioned. Opening is lazy
// and coalesced: the first operation opens the database and runs the
// additive schema upgrade, concurrent opens share the same handle, and
// the handle lives for the process lifetime. Every write runs inside a
// single-collection transaction that commits on success and rolls back
// on any error. Filters are
// evaluated client-side with the shared evaluator, so query semantics
// match the remote backend exactly.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/unimart/unimart/pkg/logger"
	"github.com/unimart/unimart/pkg/models"
	"github.com/unimart/unimart/pkg/store"
)

// Store is the embedded backend. It implements store.Backend.
type Store struct {
	path   string
	strict bool
	log    logger.Logger

	openOnce sync.Once
	openErr  error

	mu sync.Mutex
	db *sqlx.DB
}

// Option configures a Store.
type Option func(*Store)

// Strict makes reads of a missing collection fail with
// store.ErrCollectionMissing instead of returning an empty list.
func Strict() Option {
	return func(s *Store) { s.strict = true }
}

// WithLogger sets the store's logger. Defaults to a no-op logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New returns a Store for the database file at path. Use ":memory:" for
// an ephemeral store. The database is not touched until the first
// operation or an explicit Open.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the database and runs the schema upgrade. It is idempotent
// and safe for concurrent use; every caller observes the same handle and
// the same error.
func (s *Store) Open(ctx context.Context) error {
	s.openOnce.Do(func() {
		db, err := sqlx.Open("sqlite3", s.path)
		if err != nil {
			s.openErr = fmt.Errorf("open embedded store: %w", err)
			return
		}
		// SQLite is single-writer; a second connection would only queue
		// behind the first and risk SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if err := migrate(ctx, db); err != nil {
			db.Close() //nolint:errcheck
			s.openErr = err
			return
		}
		s.mu.Lock()
		s.db = db
		s.mu.Unlock()
		s.log.Debug("embedded store opened", "path", s.path, "schema_version", schemaVersion)
	})
	return s.openErr
}

// Migrate satisfies store.Backend; the schema upgrade runs as part of
// opening.
func (s *Store) Migrate(ctx context.Context) error {
	return s.Open(ctx)
}

// Close closes the database handle. Safe to call more than once and
// concurrently with other operations; operations started after Close
// fail with an error.
func (s *Store) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

// Add inserts a document. A missing or empty key field gets a generated
// UUID; reusing an existing key fails with store.ErrDuplicateID.
func (s *Store) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	keyField, err := s.keyField(collection)
	if err != nil {
		return "", err
	}

	key, _ := doc[keyField].(string)
	if key == "" {
		key = uuid.NewString()
	}
	stored := cloneDoc(doc)
	stored[keyField] = key

	raw, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		insert := fmt.Sprintf(`INSERT INTO %q (%q, doc) VALUES (?, ?)`, collection, keyField)
		if _, err := tx.ExecContext(ctx, insert, key, string(raw)); err != nil {
			var serr sqlite3.Error
			if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
				return fmt.Errorf("collection %s key %s: %w", collection, key, store.ErrDuplicateID)
			}
			return fmt.Errorf("insert into %s: %w", collection, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Get returns every matching document. The filter is validated first and
// evaluated in memory over the collection's full record set.
func (s *Store) Get(ctx context.Context, collection string, f *store.Filter) ([]map[string]any, error) {
	if _, err := s.keyField(collection); err != nil {
		if s.strict {
			return nil, fmt.Errorf("collection %s: %w", collection, store.ErrCollectionMissing)
		}
		return nil, nil
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var out []map[string]any
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var rows []string
		query := fmt.Sprintf(`SELECT doc FROM %q`, collection)
		if err := tx.SelectContext(ctx, &rows, query); err != nil {
			return fmt.Errorf("select from %s: %w", collection, err)
		}
		for _, raw := range rows {
			var doc map[string]any
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return fmt.Errorf("decode document in %s: %w", collection, err)
			}
			if f.Match(doc) {
				out = append(out, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update merges patch into the stored document. The key field cannot be
// patched; attempts to change it are dropped.
func (s *Store) Update(ctx context.Context, collection, key string, patch map[string]any) error {
	keyField, err := s.keyField(collection)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var raw string
		sel := fmt.Sprintf(`SELECT doc FROM %q WHERE %q = ?`, collection, keyField)
		if err := tx.GetContext(ctx, &raw, sel, key); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("collection %s key %s: %w", collection, key, store.ErrNotFound)
			}
			return fmt.Errorf("select from %s: %w", collection, err)
		}

		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("decode document in %s: %w", collection, err)
		}
		for k, v := range patch {
			if k == keyField {
				continue
			}
			doc[k] = v
		}

		merged, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		upd := fmt.Sprintf(`UPDATE %q SET doc = ? WHERE %q = ?`, collection, keyField)
		if _, err := tx.ExecContext(ctx, upd, string(merged), key); err != nil {
			return fmt.Errorf("update %s: %w", collection, err)
		}
		return nil
	})
}

// Delete removes the document with the given key. Absent keys succeed.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	keyField, err := s.keyField(collection)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		del := fmt.Sprintf(`DELETE FROM %q WHERE %q = ?`, collection, keyField)
		if _, err := tx.ExecContext(ctx, del, key); err != nil {
			return fmt.Errorf("delete from %s: %w", collection, err)
		}
		return nil
	})
}

// keyField validates the collection name against the closed set and
// returns its key field.
func (s *Store) keyField(collection string) (string, error) {
	kf := models.KeyField(collection)
	if kf == "" {
		return "", fmt.Errorf("collection %s: %w", collection, store.ErrUnknownCollection)
	}
	return kf, nil
}

// withTx opens the store if needed and runs fn inside a transaction,
// committing on success and rolling back on any error.
func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if err := s.Open(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return errors.New("embedded store is closed")
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return tx.Commit()
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
