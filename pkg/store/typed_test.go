package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimart/unimart/pkg/models"
)

// memBackend is a minimal in-memory Backend for exercising the typed
// helpers without a real store.
type memBackend struct {
	mu   sync.Mutex
	data map[string]map[string]map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]map[string]map[string]any)}
}

func (m *memBackend) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	keyField := models.KeyField(collection)
	if keyField == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]map[string]any)
	}
	key, _ := doc[keyField].(string)
	if key == "" {
		key = uuid.NewString()
	}
	if _, exists := m.data[collection][key]; exists {
		return "", fmt.Errorf("%s/%s: %w", collection, key, ErrDuplicateID)
	}
	cp := make(map[string]any, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	cp[keyField] = key
	m.data[collection][key] = cp
	return key, nil
}

func (m *memBackend) Get(ctx context.Context, collection string, f *Filter) ([]map[string]any, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]any
	for _, doc := range m.data[collection] {
		if f.Match(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *memBackend) Update(ctx context.Context, collection, key string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[collection][key]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, key, ErrNotFound)
	}
	keyField := models.KeyField(collection)
	for k, v := range patch {
		if k == keyField {
			continue
		}
		doc[k] = v
	}
	return nil
}

func (m *memBackend) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], key)
	return nil
}

func (m *memBackend) Migrate(ctx context.Context) error { return nil }
func (m *memBackend) Close() error                      { return nil }

func TestTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()

	p := &models.Product{
		ProductName: "calculus textbook",
		Price:       30,
		Category:    "books",
		Seller:      "seller@uni.edu",
		CreatedAt:   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	key, err := Add(ctx, b, models.Products, p)
	require.NoError(t, err)
	require.NotEmpty(t, key)
	assert.Equal(t, key, p.ID, "Add assigns the backend key onto the record")

	got, err := GetByKey[models.Product](ctx, b, models.Products, key)
	require.NoError(t, err)
	assert.Equal(t, "calculus textbook", got.ProductName)
	assert.Equal(t, 30.0, got.Price)
	assert.True(t, got.CreatedAt.Equal(p.CreatedAt))

	require.NoError(t, Update(ctx, b, models.Products, key, map[string]any{models.FieldPrice: 25}))
	got, err = GetByKey[models.Product](ctx, b, models.Products, key)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.Price)

	require.NoError(t, Delete(ctx, b, models.Products, key))
	_, err = GetByKey[models.Product](ctx, b, models.Products, key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTypedGetFilters(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()

	for _, p := range []*models.Product{
		{ProductName: "lamp", Price: 10, Category: "furniture"},
		{ProductName: "chair", Price: 40, Category: "furniture"},
		{ProductName: "novel", Price: 5, Category: "books"},
	} {
		_, err := Add(ctx, b, models.Products, p)
		require.NoError(t, err)
	}

	cheap, err := Get[models.Product](ctx, b, models.Products,
		NewFilter().Where(models.FieldCategory, OpEqual, "furniture").Where(models.FieldPrice, OpLess, 20))
	require.NoError(t, err)
	require.Len(t, cheap, 1)
	assert.Equal(t, "lamp", cheap[0].ProductName)
}

func TestTypedUserKeyedByUID(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()

	u := &models.User{UID: "uid-1", Email: "alice@uni.edu", Role: models.RoleCustomer}
	key, err := Add(ctx, b, models.Users, u)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", key, "user-supplied uid is the key")

	_, err = Add(ctx, b, models.Users, &models.User{UID: "uid-1", Email: "other@uni.edu"})
	require.ErrorIs(t, err, ErrDuplicateID)

	got, err := GetByKey[models.User](ctx, b, models.Users, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@uni.edu", got.Email)
}
