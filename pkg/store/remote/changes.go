package remote

import (
	"context"
	"fmt"
	"sync"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/unimart/unimart/pkg/models"
	"github.com/unimart/unimart/pkg/store"
)

// Changes starts a live query on collection and returns a channel of
// change events. The returned stop function kills the live query and
// closes the channel; calling it more than once is harmless.
func (s *Store) Changes(ctx context.Context, collection string) (<-chan store.Event, func(), error) {
	keyField := models.KeyField(collection)
	if keyField == "" {
		return nil, nil, fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}

	liveID, err := surrealdb.Live(ctx, s.db, surrealmodels.Table(collection), false)
	if err != nil {
		return nil, nil, fmt.Errorf("live %s: %w", collection, normalizeErr(err))
	}

	notifications, err := s.db.LiveNotifications(liveID.String())
	if err != nil {
		surrealdb.Kill(ctx, s.db, liveID.String()) //nolint:errcheck
		return nil, nil, fmt.Errorf("live notifications %s: %w", collection, normalizeErr(err))
	}

	events := make(chan store.Event, 16)
	done := make(chan struct{})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			// Kill closes the notification channel, which ends the
			// forwarding goroutine.
			if err := surrealdb.Kill(context.Background(), s.db, liveID.String()); err != nil {
				s.log.Warn("failed to kill live query", "collection", collection, "error", err)
			}
		})
	}

	go s.forward(collection, keyField, notifications, events, done)

	return events, stop, nil
}

func (s *Store) forward(collection, keyField string, in chan connection.Notification, out chan<- store.Event, done <-chan struct{}) {
	defer close(out)
	for n := range in {
		ev, ok := s.toEvent(collection, keyField, n)
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-done:
			return
		}
	}
}

func (s *Store) toEvent(collection, keyField string, n connection.Notification) (store.Event, bool) {
	var action store.Action
	switch n.Action {
	case connection.CreateAction:
		action = store.ActionCreate
	case connection.UpdateAction:
		action = store.ActionUpdate
	case connection.DeleteAction:
		action = store.ActionDelete
	default:
		s.log.Debug("ignoring live notification", "collection", collection, "action", string(n.Action))
		return store.Event{}, false
	}

	raw, ok := n.Result.(map[string]any)
	if !ok {
		s.log.Warn("unexpected live result shape", "collection", collection, "type", fmt.Sprintf("%T", n.Result))
		return store.Event{}, false
	}
	doc := normalizeDoc(keyField, raw)
	key, _ := doc[keyField].(string)

	ev := store.Event{
		Action:     action,
		Collection: collection,
		Key:        key,
	}
	if action != store.ActionDelete {
		ev.Doc = doc
	}
	return ev, true
}
