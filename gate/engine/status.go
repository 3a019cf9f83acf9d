package engine

import (
	"context"
	"fmt"

	"github.com/humancheck/gatekeeper/gate/enforce"
	"github.com/humancheck/gatekeeper/gate/machine"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/record"
)

// Moderator-facing view of a single user's verification state.
type StatusView struct {
	Record          *record.Record           `json:"record"`
	Description     enforce.Description      `json:"description"`
	Banned          bool                     `json:"banned"`
	Flags           []string                 `json:"flags"`
	OverrideOptions []enforce.OverrideOption `json:"overrideOptions"`
}

// Returns the refreshed record for the user along with a description of current enforcement.
// Inspecting a user with no record creates the default (unverified) one.
func (eng *Engine) Status(ctx context.Context, username string) (view *StatusView, err error) {
	ctx, done := eng.begin(ctx, "status", username)
	defer func() { done(err) }()
	defer eng.recoverPanic("status", username, &err)

	if err := checkUsername(username); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}

	now := eng.now()
	rec, err := eng.mutate(ctx, username, func(prev *record.Record) (*record.Record, error) {
		if prev == nil {
			return record.New(username), nil
		}
		next, _ := machine.RefreshIfTimedOut(prev, pol, now)
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	logger := eng.Logger.With("username", username)
	banned, err := eng.Platform.IsBanned(ctx, username)
	if err != nil {
		logger.Warn("failed to check ban status", "err", err)
		banned = false
	}
	flags, err := eng.Flags.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	return &StatusView{
		Record:          rec,
		Description:     enforce.Describe(username, rec.Status, pol, banned),
		Banned:          banned,
		Flags:           flags,
		OverrideOptions: enforce.OverrideOptions(rec.Status, pol),
	}, nil
}

// Lists the usernames which have a stored record, sorted.
func (eng *Engine) ListUsernames(ctx context.Context) ([]string, error) {
	return eng.Records.ListUsernames(ctx)
}

// Deletes every stored record, along with per-user flags. Needs the "config" permission. Returns
// the number of records deleted.
func (eng *Engine) ClearAll(ctx context.Context, actor string) (count int, err error) {
	ctx, done := eng.begin(ctx, "clear", "")
	defer func() { done(err) }()
	defer eng.recoverPanic("clear", "", &err)

	if err := eng.checkPermission(ctx, actor, platform.PermConfig); err != nil {
		return 0, err
	}
	usernames, err := eng.Records.ListUsernames(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing verification records: %w", err)
	}
	for _, u := range usernames {
		if err := eng.Records.Delete(ctx, u); err != nil {
			return count, fmt.Errorf("deleting verification record: %w", err)
		}
		if err := eng.Flags.Remove(ctx, u, allFlags); err != nil {
			eng.Logger.Error("failed to clear flags", "err", err, "username", u)
		}
		count++
	}
	eng.Logger.Warn("cleared all verification records", "actor", actor, "count", count)
	return count, nil
}
