package memory

import (
	"context"
	"sync"

	"elasticpool/pkg/interfaces"
)

// Store process-local blob store
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Put stores a copy of data under key, overwriting any previous value
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.blobs[key] = buf
	s.mu.Unlock()
	return nil
}

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, interfaces.ErrBlobNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Keys lists stored keys
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys
}
