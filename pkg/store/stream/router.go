// Package stream delivers collection change notifications to
// subscribers, starting each subscription with a snapshot of the
// matching documents and following it with incremental events.
//
// When the backend can stream changes natively the router proxies its
// event channel; otherwise it falls back to polling the collection and
// diffing consecutive result sets. Subscribers observe the same
// notification shapes either way.
package stream

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/unimart/unimart/pkg/logger"
	"github.com/unimart/unimart/pkg/models"
	"github.com/unimart/unimart/pkg/store"
)

// DefaultPollInterval is the polling cadence used when the backend does
// not support native change streams.
const DefaultPollInterval = 1500 * time.Millisecond

// Router creates subscriptions against a backend.
type Router struct {
	log          logger.Logger
	pollInterval time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger for subscription lifecycle events.
func WithLogger(log logger.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithPollInterval overrides the polling cadence for backends without
// native change streams.
func WithPollInterval(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// NewRouter returns a Router with the given options applied.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		log:          logger.Nop(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscription is a handle on an active subscription. Dropping it
// without calling Unsubscribe leaks the delivery goroutine.
type Subscription struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Unsubscribe tears the subscription down and waits for the delivery
// goroutine to finish. No notifications are delivered after it returns.
// Calling it again has no effect.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// Subscribe registers notify for changes to the documents of collection
// matching f. The first notification is always a snapshot of the current
// matching set; subsequent notifications carry single-document create,
// update, and delete events in the order they were observed.
//
// notify is invoked from a single goroutine per subscription, so
// callbacks for one subscription never run concurrently.
func (r *Router) Subscribe(ctx context.Context, b store.Backend, collection string, f *store.Filter, notify store.NotifyFunc) (*Subscription, error) {
	keyField := models.KeyField(collection)
	if keyField == "" {
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	// When the backend streams natively the stream opens before the
	// snapshot read, so changes landing in between are not lost. They
	// may surface as an update for a document already in the snapshot,
	// which subscribers must tolerate.
	var (
		events     <-chan store.Event
		stopStream func()
	)
	if cs, ok := b.(store.ChangeStreamer); ok {
		var err error
		events, stopStream, err = cs.Changes(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("open change stream: %w", err)
		}
	}

	docs, err := b.Get(ctx, collection, f)
	if err != nil {
		if stopStream != nil {
			stopStream()
		}
		return nil, fmt.Errorf("snapshot %s: %w", collection, err)
	}

	known := make(map[string]map[string]any, len(docs))
	for _, doc := range docs {
		if key, ok := doc[keyField].(string); ok {
			known[key] = doc
		}
	}

	sub := &Subscription{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	w := &watcher{
		router:     r,
		backend:    b,
		collection: collection,
		keyField:   keyField,
		filter:     f,
		notify:     notify,
		known:      known,
		sub:        sub,
	}

	notify(store.Notification{
		Action:     store.ActionSnapshot,
		Collection: collection,
		Docs:       docs,
	})

	if events != nil {
		go w.runStream(ctx, events, stopStream)
	} else {
		go w.runPoll(ctx)
	}

	r.log.Debug("subscription started",
		"collection", collection,
		"mode", map[bool]string{true: "stream", false: "poll"}[events != nil])

	return sub, nil
}

// watcher tracks the matching document set for one subscription and
// turns backend changes into notifications.
type watcher struct {
	router     *Router
	backend    store.Backend
	collection string
	keyField   string
	filter     *store.Filter
	notify     store.NotifyFunc
	known      map[string]map[string]any
	sub        *Subscription
}

func (w *watcher) runStream(ctx context.Context, events <-chan store.Event, stopStream func()) {
	defer close(w.sub.done)
	defer stopStream()

	for {
		select {
		case <-w.sub.stop:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				w.router.log.Warn("change stream ended", "collection", w.collection)
				return
			}
			w.apply(ev)
		}
	}
}

// apply folds one backend event into the matching set and emits the
// resulting notification, if any. A document that stops matching the
// filter is reported as a delete, and one that starts matching as a
// create, so subscribers always hold exactly the matching set.
func (w *watcher) apply(ev store.Event) {
	if ev.Key == "" {
		return
	}
	_, wasKnown := w.known[ev.Key]

	matches := ev.Action != store.ActionDelete && w.filter.Match(ev.Doc)

	switch {
	case matches && !wasKnown:
		w.known[ev.Key] = ev.Doc
		w.emit(store.ActionCreate, ev.Key, ev.Doc)
	case matches && wasKnown:
		w.known[ev.Key] = ev.Doc
		w.emit(store.ActionUpdate, ev.Key, ev.Doc)
	case !matches && wasKnown:
		delete(w.known, ev.Key)
		w.emit(store.ActionDelete, ev.Key, nil)
	}
}

func (w *watcher) runPoll(ctx context.Context) {
	defer close(w.sub.done)

	ticker := time.NewTicker(w.router.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.sub.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll re-reads the matching set and emits the difference against the
// previous read. A failed read skips the cycle rather than ending the
// subscription, since transient backend errors are expected here.
func (w *watcher) poll(ctx context.Context) {
	docs, err := w.backend.Get(ctx, w.collection, w.filter)
	if err != nil {
		w.router.log.Warn("poll failed", "collection", w.collection, "error", err)
		return
	}

	current := make(map[string]map[string]any, len(docs))
	for _, doc := range docs {
		key, ok := doc[w.keyField].(string)
		if !ok {
			continue
		}
		current[key] = doc
		prev, wasKnown := w.known[key]
		switch {
		case !wasKnown:
			w.emit(store.ActionCreate, key, doc)
		case !reflect.DeepEqual(prev, doc):
			w.emit(store.ActionUpdate, key, doc)
		}
	}
	for key := range w.known {
		if _, ok := current[key]; !ok {
			w.emit(store.ActionDelete, key, nil)
		}
	}
	w.known = current
}

func (w *watcher) emit(action store.Action, key string, doc map[string]any) {
	w.notify(store.Notification{
		Action:     action,
		Collection: w.collection,
		Key:        key,
		Doc:        doc,
	})
}
