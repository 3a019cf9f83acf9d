// Caching of slow upstream lookups (moderator lists and permissions, user profiles) with a fixed
// TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
package cachestore
