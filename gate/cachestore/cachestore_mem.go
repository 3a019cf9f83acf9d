package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemCacheStore struct {
	Data *expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	v, ok := s.Data.Get(cacheKey(name, key))
	return v, ok, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	s.Data.Add(cacheKey(name, key), val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.Data.Remove(cacheKey(name, key))
	return nil
}
