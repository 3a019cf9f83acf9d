package flagstore

import (
	"context"
)

// Free-form flags attached to a username, like "honeypot" or "too-fast". Flags accumulate across
// challenge cycles and are cleared by operators.
type FlagStore interface {
	// sorted; empty (not nil) when the user has no flags
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	// does not error if flags are not set
	Remove(ctx context.Context, key string, flags []string) error
}
