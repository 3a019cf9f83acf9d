package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/humancheck/gatekeeper/gate/cachestore"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/record"
)

// Answers questions about moderator privileges for operator actions.
type PermissionChecker interface {
	// true if the actor is a moderator holding every one of perms
	HasPermission(ctx context.Context, actor string, perms ...string) (bool, error)
	IsModerator(ctx context.Context, username string) (bool, error)
}

const moderatorCacheName = "moderator"

type moderatorEntry struct {
	Moderator   bool     `json:"moderator"`
	Permissions []string `json:"permissions,omitempty"`
}

// PermissionChecker backed by the platform's moderator list. Lookups are cached per username, for
// as long as the cache store holds entries.
type ModeratorPermissions struct {
	Platform platform.Client
	// optional
	Cache cachestore.CacheStore
}

var _ PermissionChecker = (*ModeratorPermissions)(nil)

func (p *ModeratorPermissions) HasPermission(ctx context.Context, actor string, perms ...string) (bool, error) {
	ent, err := p.lookup(ctx, actor)
	if err != nil {
		return false, err
	}
	if !ent.Moderator {
		return false, nil
	}
	m := platform.Moderator{Username: actor, Permissions: ent.Permissions}
	return m.Has(perms...), nil
}

func (p *ModeratorPermissions) IsModerator(ctx context.Context, username string) (bool, error) {
	ent, err := p.lookup(ctx, username)
	if err != nil {
		return false, err
	}
	return ent.Moderator, nil
}

func (p *ModeratorPermissions) lookup(ctx context.Context, username string) (*moderatorEntry, error) {
	key := strings.ToLower(username)
	if p.Cache != nil {
		val, ok, err := p.Cache.Get(ctx, moderatorCacheName, key)
		if err != nil {
			return nil, err
		}
		if ok {
			var ent moderatorEntry
			if err := json.Unmarshal([]byte(val), &ent); err == nil {
				return &ent, nil
			}
		}
	}

	mods, err := p.Platform.ListModerators(ctx)
	if err != nil {
		return nil, err
	}
	var out *moderatorEntry
	for _, m := range mods {
		ent := &moderatorEntry{Moderator: true, Permissions: m.Permissions}
		if strings.EqualFold(m.Username, username) {
			out = ent
		}
		p.store(ctx, strings.ToLower(m.Username), ent)
	}
	if out == nil {
		out = &moderatorEntry{}
		p.store(ctx, key, out)
	}
	return out, nil
}

func (p *ModeratorPermissions) store(ctx context.Context, key string, ent *moderatorEntry) {
	if p.Cache == nil {
		return
	}
	b, err := json.Marshal(ent)
	if err != nil {
		return
	}
	// caching is opportunistic
	_ = p.Cache.Set(ctx, moderatorCacheName, key, string(b))
}

// operator actions from trusted local callers (CLI) carry no actor
func (eng *Engine) checkPermission(ctx context.Context, actor string, perms ...string) error {
	if actor == "" || eng.Perms == nil {
		return nil
	}
	ok, err := eng.Perms.HasPermission(ctx, actor, perms...)
	if err != nil {
		return fmt.Errorf("checking moderator permissions: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s lacks moderator permissions %s", record.ErrPermission, actor, strings.Join(perms, "+"))
	}
	return nil
}
