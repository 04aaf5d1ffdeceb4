package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimart/unimart/pkg/models"
	"github.com/unimart/unimart/pkg/store"
)

// pollBackend is a Backend without native change streams; the router
// must fall back to polling it.
type pollBackend struct {
	mu   sync.Mutex
	docs map[string]map[string]any
}

func newPollBackend() *pollBackend {
	return &pollBackend{docs: make(map[string]map[string]any)}
}

func (b *pollBackend) put(doc map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[doc[models.FieldID].(string)] = doc
}

func (b *pollBackend) remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.docs, key)
}

func (b *pollBackend) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	b.put(doc)
	return doc[models.FieldID].(string), nil
}

func (b *pollBackend) Get(ctx context.Context, collection string, f *store.Filter) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, doc := range b.docs {
		if f.Match(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (b *pollBackend) Update(ctx context.Context, collection, key string, patch map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc := b.docs[key]
	for k, v := range patch {
		doc[k] = v
	}
	return nil
}

func (b *pollBackend) Delete(ctx context.Context, collection, key string) error {
	b.remove(key)
	return nil
}

func (b *pollBackend) Migrate(ctx context.Context) error { return nil }
func (b *pollBackend) Close() error                      { return nil }

// streamBackend adds a hand-fed change stream on top of pollBackend.
type streamBackend struct {
	*pollBackend
	events  chan store.Event
	stopped bool
	mu      sync.Mutex
}

func newStreamBackend() *streamBackend {
	return &streamBackend{
		pollBackend: newPollBackend(),
		events:      make(chan store.Event, 16),
	}
}

func (b *streamBackend) Changes(ctx context.Context, collection string) (<-chan store.Event, func(), error) {
	stop := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.stopped {
			b.stopped = true
			close(b.events)
		}
	}
	return b.events, stop, nil
}

// collector gathers notifications for assertions.
type collector struct {
	mu            sync.Mutex
	notifications []store.Notification
}

func (c *collector) notify(n store.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, n)
}

func (c *collector) snapshot() []store.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

func (c *collector) waitFor(t *testing.T, n int) []store.Notification {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got := c.snapshot()
		if len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d notifications, have %d", n, len(c.snapshot()))
	return nil
}

func doc(key, name string, price float64) map[string]any {
	return map[string]any{
		models.FieldID:          key,
		models.FieldProductName: name,
		models.FieldPrice:       price,
	}
}

func TestSubscribeDeliversSnapshotFirst(t *testing.T) {
	ctx := context.Background()
	b := newStreamBackend()
	b.put(doc("p-1", "lamp", 10))
	b.put(doc("p-2", "chair", 40))

	var c collector
	sub, err := NewRouter().Subscribe(ctx, b, models.CollectionProducts, nil, c.notify)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	got := c.waitFor(t, 1)
	require.Equal(t, store.ActionSnapshot, got[0].Action)
	assert.Len(t, got[0].Docs, 2)
	assert.Equal(t, models.CollectionProducts, got[0].Collection)
}

func TestStreamEventsFollowSnapshot(t *testing.T) {
	ctx := context.Background()
	b := newStreamBackend()
	b.put(doc("p-1", "lamp", 10))

	var c collector
	sub, err := NewRouter().Subscribe(ctx, b, models.CollectionProducts, nil, c.notify)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	b.events <- store.Event{Action: store.ActionCreate, Collection: models.CollectionProducts, Key: "p-2", Doc: doc("p-2", "chair", 40)}
	b.events <- store.Event{Action: store.ActionUpdate, Collection: models.CollectionProducts, Key: "p-1", Doc: doc("p-1", "lamp", 8)}
	b.events <- store.Event{Action: store.ActionDelete, Collection: models.CollectionProducts, Key: "p-2"}

	got := c.waitFor(t, 4)
	require.Equal(t, store.ActionSnapshot, got[0].Action)
	assert.Equal(t, store.ActionCreate, got[1].Action)
	assert.Equal(t, "p-2", got[1].Key)
	assert.Equal(t, store.ActionUpdate, got[2].Action)
	assert.Equal(t, "p-1", got[2].Key)
	assert.Equal(t, store.ActionDelete, got[3].Action)
	assert.Equal(t, "p-2", got[3].Key)
	assert.Nil(t, got[3].Doc)
}

func TestStreamFilterTransitions(t *testing.T) {
	ctx := context.Background()
	b := newStreamBackend()
	b.put(doc("p-1", "lamp", 10))

	f := store.NewFilter().Where(models.FieldPrice, store.OpLess, 20.0)

	var c collector
	sub, err := NewRouter().Subscribe(ctx, b, models.CollectionProducts, f, c.notify)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// Moves outside the filter: subscriber sees a delete.
	b.events <- store.Event{Action: store.ActionUpdate, Collection: models.CollectionProducts, Key: "p-1", Doc: doc("p-1", "lamp", 50)}
	// Moves back inside: subscriber sees a create.
	b.events <- store.Event{Action: store.ActionUpdate, Collection: models.CollectionProducts, Key: "p-1", Doc: doc("p-1", "lamp", 5)}
	// A non-matching create is invisible.
	b.events <- store.Event{Action: store.ActionCreate, Collection: models.CollectionProducts, Key: "p-9", Doc: doc("p-9", "piano", 900)}
	b.events <- store.Event{Action: store.ActionDelete, Collection: models.CollectionProducts, Key: "p-1"}

	got := c.waitFor(t, 4)
	assert.Equal(t, store.ActionDelete, got[1].Action)
	assert.Equal(t, "p-1", got[1].Key)
	assert.Equal(t, store.ActionCreate, got[2].Action)
	assert.Equal(t, "p-1", got[2].Key)
	assert.Equal(t, store.ActionDelete, got[3].Action)
	assert.Equal(t, "p-1", got[3].Key)
}

func TestPollingDetectsChanges(t *testing.T) {
	ctx := context.Background()
	b := newPollBackend()
	b.put(doc("p-1", "lamp", 10))

	var c collector
	router := NewRouter(WithPollInterval(10 * time.Millisecond))
	sub, err := router.Subscribe(ctx, b, models.CollectionProducts, nil, c.notify)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	c.waitFor(t, 1)

	b.put(doc("p-2", "chair", 40))
	got := c.waitFor(t, 2)
	assert.Equal(t, store.ActionCreate, got[1].Action)
	assert.Equal(t, "p-2", got[1].Key)

	b.put(doc("p-2", "chair", 35))
	got = c.waitFor(t, 3)
	assert.Equal(t, store.ActionUpdate, got[2].Action)

	b.remove("p-1")
	got = c.waitFor(t, 4)
	assert.Equal(t, store.ActionDelete, got[3].Action)
	assert.Equal(t, "p-1", got[3].Key)
}

func TestUnsubscribeIsFinalAndIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newPollBackend()

	var c collector
	router := NewRouter(WithPollInterval(10 * time.Millisecond))
	sub, err := router.Subscribe(ctx, b, models.CollectionProducts, nil, c.notify)
	require.NoError(t, err)

	c.waitFor(t, 1)
	sub.Unsubscribe()
	sub.Unsubscribe()

	before := len(c.snapshot())
	b.put(doc("p-1", "lamp", 10))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, len(c.snapshot()), "no notifications after unsubscribe")
}

func TestSubscribeRejectsInvalidFilter(t *testing.T) {
	ctx := context.Background()
	b := newPollBackend()

	var c collector
	_, err := NewRouter().Subscribe(ctx, b, models.CollectionProducts,
		store.NewFilter().Where(models.FieldPrice, store.Op("like"), 1), c.notify)
	require.ErrorIs(t, err, store.ErrInvalidFilter)
}

func TestSubscribeRejectsUnknownCollection(t *testing.T) {
	ctx := context.Background()
	b := newPollBackend()

	var c collector
	_, err := NewRouter().Subscribe(ctx, b, "nonexistent", nil, c.notify)
	require.ErrorIs(t, err, store.ErrUnknownCollection)
}

func TestContextCancelEndsSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := newStreamBackend()

	var c collector
	sub, err := NewRouter().Subscribe(ctx, b, models.CollectionProducts, nil, c.notify)
	require.NoError(t, err)

	cancel()
	done := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Unsubscribe did not return after context cancellation")
	}
}
