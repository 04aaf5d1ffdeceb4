package store

import (
	"context"
	"fmt"

	"github.com/unimart/unimart/pkg/models"
)

// recordPtr constrains PT to "pointer to T that is a models.Record",
// letting the helpers allocate results and set assigned keys in place.
type recordPtr[T any] interface {
	*T
	models.Record
}

// Add inserts a typed record and stamps the assigned key back onto it.
func Add[T any, PT recordPtr[T]](ctx context.Context, b Backend, c models.Collection, rec PT) (string, error) {
	doc, err := models.Encode(rec)
	if err != nil {
		return "", err
	}
	key, err := b.Add(ctx, c.Name, doc)
	if err != nil {
		return "", err
	}
	rec.SetKey(key)
	return key, nil
}

// Get returns every record in the collection matching the filter, decoded
// into the collection's record type.
func Get[T any, PT recordPtr[T]](ctx context.Context, b Backend, c models.Collection, f *Filter) ([]*T, error) {
	docs, err := b.Get(ctx, c.Name, f)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		rec, err := models.Decode[T](doc)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", c.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetByKey returns the single record with the given key, or ErrNotFound.
func GetByKey[T any, PT recordPtr[T]](ctx context.Context, b Backend, c models.Collection, key string) (*T, error) {
	f := NewFilter().Where(c.Key, OpEqual, key)
	recs, err := Get[T, PT](ctx, b, c, f)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("collection %s key %s: %w", c.Name, key, ErrNotFound)
	}
	return recs[0], nil
}

// Update merges a typed patch into the record with the given key.
func Update(ctx context.Context, b Backend, c models.Collection, key string, patch map[string]any) error {
	return b.Update(ctx, c.Name, key, patch)
}

// Delete removes the record with the given key. Absent keys succeed.
func Delete(ctx context.Context, b Backend, c models.Collection, key string) error {
	return b.Delete(ctx, c.Name, key)
}
