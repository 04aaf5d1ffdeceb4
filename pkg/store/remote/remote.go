// Package remote implements the store.Backend interface on top of a
// SurrealDB instance reached over WebSocket.
//
// The connection is configured with the surrealcbor codec so that
// time.Time values and record IDs survive the round trip to SurrealDB's
// internal CBOR format. Documents cross the wire as map[string]any and
// are normalized back to plain JSON-style values on the way out, so
// callers never see driver types.
//
// Filters are pushed down as parameterized SurrealQL wherever the
// operator maps onto a native one; the few shapes that cannot be
// expressed server-side fall back to fetching the collection and
// evaluating the filter locally.
package remote

import (
	"context"
	"fmt"
	"net/url"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/unimart/unimart/pkg/logger"
	"github.com/unimart/unimart/pkg/models"
	"github.com/unimart/unimart/pkg/store"
)

// Config carries the connection parameters for a SurrealDB endpoint.
type Config struct {
	// Endpoint is the WebSocket URL of the instance, e.g. "ws://localhost:8000/rpc".
	Endpoint string
	// Namespace and Database select the logical database to use.
	Namespace string
	Database  string
	// Username and Password authenticate the connection. Leave both
	// empty to skip authentication (local development instances).
	Username string
	Password string
}

// Store is a store.Backend backed by SurrealDB. Each collection maps to
// a table, and the collection's key field maps to the record ID.
type Store struct {
	db  *surrealdb.DB
	log logger.Logger
}

var _ store.Backend = (*Store)(nil)
var _ store.ChangeStreamer = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for connection and stream events.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New connects to the SurrealDB endpoint described by cfg, authenticates,
// and selects the namespace and database.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	conf := connection.NewConfig(u)

	// The surrealcbor codec is required for time.Time and RecordID
	// values to marshal in the format the server expects.
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", normalizeErr(err))
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			db.Close(ctx) //nolint:errcheck
			return nil, fmt.Errorf("sign in: %w", normalizeErr(err))
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx) //nolint:errcheck
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, normalizeErr(err))
	}

	s := &Store{db: db, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromDB wraps an already-connected client. Used by tests and by callers
// that manage the connection themselves.
func FromDB(db *surrealdb.DB, opts ...Option) *Store {
	s := &Store{db: db, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate is a no-op: tables are created implicitly on first insert and
// documents carry their own shape. Version gating lives in the embedded
// store, which is the only backend with a physical schema.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

// Close terminates the underlying connection.
func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// Add inserts doc into collection. When doc carries a value under the
// collection's key field that value becomes the record ID; otherwise the
// server assigns one. Returns the key of the stored record.
func (s *Store) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	keyField := models.KeyField(collection)
	if keyField == "" {
		return "", fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}

	content := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == keyField {
			continue
		}
		content[k] = v
	}

	var (
		created *map[string]any
		err     error
	)
	if key, ok := doc[keyField].(string); ok && key != "" {
		rid := surrealmodels.NewRecordID(collection, key)
		created, err = surrealdb.Create[map[string]any](ctx, s.db, rid, content)
	} else {
		created, err = surrealdb.Create[map[string]any](ctx, s.db, collection, content)
	}
	if err != nil {
		return "", fmt.Errorf("create %s: %w", collection, normalizeErr(err))
	}
	if created == nil {
		return "", fmt.Errorf("create %s: %w", collection, store.ErrTransient)
	}

	out := normalizeDoc(keyField, *created)
	key, _ := out[keyField].(string)
	if key == "" {
		return "", fmt.Errorf("create %s: no record id in response", collection)
	}
	return key, nil
}

// Get returns the documents in collection matching f, pushing the filter
// down to the server when every predicate translates to SurrealQL.
func (s *Store) Get(ctx context.Context, collection string, f *store.Filter) ([]map[string]any, error) {
	keyField := models.KeyField(collection)
	if keyField == "" {
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	query, vars, pushed := buildSelect(collection, keyField, f)

	res, err := surrealdb.Query[[]map[string]any](ctx, s.db, query, vars)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, normalizeErr(err))
	}

	var docs []map[string]any
	if res != nil && len(*res) > 0 {
		docs = (*res)[0].Result
	}

	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		nd := normalizeDoc(keyField, doc)
		if !pushed && !f.Match(nd) {
			continue
		}
		out = append(out, nd)
	}
	return out, nil
}

// Update merges patch into the record identified by key. Fields absent
// from patch keep their stored values. Returns store.ErrNotFound when no
// such record exists.
func (s *Store) Update(ctx context.Context, collection, key string, patch map[string]any) error {
	keyField := models.KeyField(collection)
	if keyField == "" {
		return fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}

	rid := surrealmodels.NewRecordID(collection, key)

	// An UPDATE ... MERGE on a missing record would silently create it,
	// so existence is checked first.
	res, err := surrealdb.Query[[]map[string]any](ctx, s.db, "SELECT id FROM $rid", map[string]any{"rid": rid})
	if err != nil {
		return fmt.Errorf("lookup %s/%s: %w", collection, key, normalizeErr(err))
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return fmt.Errorf("%s/%s: %w", collection, key, store.ErrNotFound)
	}

	merge := make(map[string]any, len(patch))
	for k, v := range patch {
		if k == keyField {
			continue
		}
		merge[k] = v
	}
	if len(merge) == 0 {
		return nil
	}

	if _, err := surrealdb.Merge[map[string]any](ctx, s.db, rid, merge); err != nil {
		return fmt.Errorf("merge %s/%s: %w", collection, key, normalizeErr(err))
	}
	return nil
}

// Delete removes the record identified by key. Deleting an absent record
// is not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if models.KeyField(collection) == "" {
		return fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}
	rid := surrealmodels.NewRecordID(collection, key)
	if _, err := surrealdb.Delete[map[string]any](ctx, s.db, rid); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, normalizeErr(err))
	}
	return nil
}
