// Package dual combines a remote backend and an embedded local backend
// behind a single store.Backend, selecting between them by mode.
//
// In remote mode every operation targets the remote backend; successful
// writes are additionally mirrored to the local backend so that a later
// demotion finds recent data on disk. Mirror failures are logged and
// never surface to the caller. In local mode the remote backend is never
// touched.
//
// A write rejected with store.ErrQuotaExceeded demotes the store to
// local mode for the rest of its lifetime and is retried once against
// the local backend. Demotion is one-way; only Reset restores the
// configured mode.
package dual

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unimart/unimart/pkg/logger"
	"github.com/unimart/unimart/pkg/models"
	"github.com/unimart/unimart/pkg/store"
	"github.com/unimart/unimart/pkg/store/stream"
)

// Mode selects which backend serves reads and primary writes.
type Mode string

const (
	// ModeRemote serves all operations from the remote backend and
	// mirrors successful writes to the local one.
	ModeRemote Mode = "remote"
	// ModeLocal serves all operations from the local backend.
	ModeLocal Mode = "local"
)

// Store is the dual-backend facade. It implements store.Backend.
type Store struct {
	remote store.Backend
	local  store.Backend
	router *stream.Router
	log    logger.Logger

	// configured is the mode chosen at construction; mode is the
	// effective one, which differs only after a quota demotion.
	configured Mode
	mu         sync.RWMutex
	mode       Mode
}

var _ store.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for mirror and demotion events.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithRouter replaces the subscription router, mainly to shorten the
// polling interval in tests.
func WithRouter(r *stream.Router) Option {
	return func(s *Store) { s.router = r }
}

// New builds a facade over the two backends. mode is typically derived
// from the use-remote flag; local must not be nil, and remote must not
// be nil when mode is ModeRemote.
func New(remote, local store.Backend, mode Mode, opts ...Option) (*Store, error) {
	if local == nil {
		return nil, errors.New("dual: local backend is required")
	}
	if mode == ModeRemote && remote == nil {
		return nil, errors.New("dual: remote backend is required in remote mode")
	}
	if mode != ModeRemote && mode != ModeLocal {
		return nil, fmt.Errorf("dual: unknown mode %q", mode)
	}
	s := &Store{
		remote:     remote,
		local:      local,
		configured: mode,
		mode:       mode,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		s.router = stream.NewRouter(stream.WithLogger(s.log))
	}
	return s, nil
}

// Mode returns the effective mode.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Demote switches the store to local mode. It is a no-op when already
// local. The switch is permanent until Reset.
func (s *Store) Demote(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeLocal {
		return
	}
	s.mode = ModeLocal
	s.log.Warn("demoted to local backend", "reason", reason)
}

// Reset restores the configured mode. Intended for a fresh session, not
// for automatic recovery.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != s.configured {
		s.log.Info("mode reset", "mode", string(s.configured))
	}
	s.mode = s.configured
}

// backend returns the backend serving the current mode.
func (s *Store) backend() store.Backend {
	if s.Mode() == ModeRemote {
		return s.remote
	}
	return s.local
}

// Add stores doc in the selected backend and returns its key. In remote
// mode the stored document is mirrored to the local backend afterwards.
func (s *Store) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	if s.Mode() == ModeLocal {
		return s.local.Add(ctx, collection, doc)
	}

	key, err := s.remote.Add(ctx, collection, doc)
	if err != nil {
		if s.demoteOnQuota(err) {
			return s.local.Add(ctx, collection, doc)
		}
		return "", err
	}

	s.mirrorAdd(ctx, collection, key, doc)
	return key, nil
}

// Get reads from the selected backend only. Local data is never
// consulted while remote is selected, so reads always reflect the
// writes the caller just made.
func (s *Store) Get(ctx context.Context, collection string, f *store.Filter) ([]map[string]any, error) {
	return s.backend().Get(ctx, collection, f)
}

// Update applies patch in the selected backend, mirroring to local in
// remote mode.
func (s *Store) Update(ctx context.Context, collection, key string, patch map[string]any) error {
	if s.Mode() == ModeLocal {
		return s.local.Update(ctx, collection, key, patch)
	}

	if err := s.remote.Update(ctx, collection, key, patch); err != nil {
		if s.demoteOnQuota(err) {
			return s.local.Update(ctx, collection, key, patch)
		}
		return err
	}

	if err := s.local.Update(ctx, collection, key, patch); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("mirror update failed", "collection", collection, "key", key, "error", err)
	}
	return nil
}

// Delete removes the record in the selected backend, mirroring to local
// in remote mode.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if s.Mode() == ModeLocal {
		return s.local.Delete(ctx, collection, key)
	}

	if err := s.remote.Delete(ctx, collection, key); err != nil {
		if s.demoteOnQuota(err) {
			return s.local.Delete(ctx, collection, key)
		}
		return err
	}

	if err := s.local.Delete(ctx, collection, key); err != nil {
		s.log.Warn("mirror delete failed", "collection", collection, "key", key, "error", err)
	}
	return nil
}

// Subscribe attaches a change subscription to the selected backend. The
// subscription stays bound to that backend even if the store demotes
// afterwards; callers resubscribe after a mode change.
func (s *Store) Subscribe(ctx context.Context, collection string, f *store.Filter, notify store.NotifyFunc) (*stream.Subscription, error) {
	return s.router.Subscribe(ctx, s.backend(), collection, f, notify)
}

// Migrate prepares both backends. The local backend always migrates, so
// a demotion later in the session lands on a ready store.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.local.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate local: %w", err)
	}
	if s.configured == ModeRemote && s.remote != nil {
		if err := s.remote.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate remote: %w", err)
		}
	}
	return nil
}

// Close closes both backends, returning the first error.
func (s *Store) Close() error {
	var first error
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			first = err
		}
	}
	if err := s.local.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// demoteOnQuota reports whether err is a quota rejection, demoting the
// store as a side effect when it is.
func (s *Store) demoteOnQuota(err error) bool {
	if !errors.Is(err, store.ErrQuotaExceeded) {
		return false
	}
	s.Demote("quota exceeded")
	return true
}

// mirrorAdd copies a successfully stored document to the local backend.
// The key assigned by the remote backend is forced into the mirror so
// both stores agree on identity.
func (s *Store) mirrorAdd(ctx context.Context, collection, key string, doc map[string]any) {
	keyField := keyFieldOrID(collection)
	mirror := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		mirror[k] = v
	}
	mirror[keyField] = key

	if _, err := s.local.Add(ctx, collection, mirror); err != nil && !errors.Is(err, store.ErrDuplicateID) {
		s.log.Warn("mirror add failed", "collection", collection, "key", key, "error", err)
	}
}

func keyFieldOrID(collection string) string {
	if kf := models.KeyField(collection); kf != "" {
		return kf
	}
	return models.FieldID
}
