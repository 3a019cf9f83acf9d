package cachestore

import (
	"context"
)

// String values (typically JSON) cached under a namespace and key, with a store-wide TTL.
//
// Get distinguishes a miss from a cached empty string, since "no permissions" is a perfectly good
// thing to cache.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, bool, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

func cacheKey(name, key string) string {
	return name + "/" + key
}
