// Package blob defines the binary upload contract for listing images.
// Documents only ever store the returned URL, never the bytes.
package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a stored blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Store uploads binary content and returns a stable URL for it.
type Store interface {
	// Put stores data under the given content type and returns the URL
	// at which it can be fetched.
	Put(ctx context.Context, contentType string, data []byte) (string, error)
}

// MemoryStore is an in-process Store for tests. URLs use the mem://
// scheme and resolve only through Get.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, contentType string, data []byte) (string, error) {
	url := fmt.Sprintf("mem://%s", uuid.NewString())
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.blobs[url] = cp
	m.mu.Unlock()
	return url, nil
}

// Get returns the bytes stored under url.
func (m *MemoryStore) Get(url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	return data, nil
}
