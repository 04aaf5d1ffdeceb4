package blob

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	url, err := s.Put(ctx, "image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "mem://"))

	data, err := s.Get(url)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestMemoryStoreDistinctURLs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := s.Put(ctx, "image/png", []byte("a"))
	require.NoError(t, err)
	b, err := s.Put(ctx, "image/png", []byte("a"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMemoryStoreMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get("mem://nope")
	require.ErrorIs(t, err, ErrNotFound)
}
