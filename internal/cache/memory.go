package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize bounds the in-process store when no size is configured.
const DefaultSize = 1024

// MemoryStore is an in-process LRU with an optional TTL. Safe for concurrent use.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore creates a store holding at most size entries. A zero ttl keeps
// entries until they are evicted.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = DefaultSize
	}
	return &MemoryStore{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.lru.Get(key)
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.lru.Add(key, append([]byte(nil), value...))
	return nil
}

func (s *MemoryStore) Purge(context.Context) error {
	s.lru.Purge()
	return nil
}

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}
