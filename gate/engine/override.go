package engine

import (
	"context"
	"fmt"

	"github.com/humancheck/gatekeeper/gate/directive"
	"github.com/humancheck/gatekeeper/gate/machine"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/record"
)

type OverrideRequest struct {
	// moderator performing the override; empty for trusted local callers
	Actor    string        `json:"actor"`
	Username string        `json:"username"`
	Target   record.Status `json:"target"`
	// also ban the user; only valid with a failed target
	Ban bool `json:"ban"`
}

type OverrideResult struct {
	// nil after an override to unverified (the record is deleted)
	Record   *record.Record `json:"record"`
	Previous record.Status  `json:"previous"`
	Banned   bool           `json:"banned"`
	// set when the ban sub-action was requested but not carried out
	BanRefused string `json:"banRefused,omitempty"`
}

// Forces a user's verification status. The actor needs the "posts" and "access" permissions (or
// "all"); without them an ErrPermission is returned and nothing changes.
//
// Moderators can not be banned: a ban request against one is skipped and explained in the result,
// while the status override itself goes ahead.
func (eng *Engine) Override(ctx context.Context, req OverrideRequest) (res *OverrideResult, err error) {
	ctx, done := eng.begin(ctx, "override", req.Username)
	defer func() { done(err) }()
	defer eng.recoverPanic("override", req.Username, &err)

	if err := checkUsername(req.Username); err != nil {
		return nil, err
	}
	if req.Ban && req.Target != record.StatusFailed {
		return nil, fmt.Errorf("%w: ban only applies to an override to %s", record.ErrValidation, record.StatusFailed)
	}
	if err := eng.checkPermission(ctx, req.Actor, platform.PermPosts, platform.PermAccess); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}

	actor := req.Actor
	if actor == "" {
		actor = "operator"
	}
	prevStatus := record.StatusUnverified
	rec, err := eng.mutate(ctx, req.Username, func(prev *record.Record) (*record.Record, error) {
		prevStatus = record.StatusUnverified
		if prev != nil {
			refreshed, _ := machine.RefreshIfTimedOut(prev, pol, eng.now())
			prevStatus = refreshed.Status
		}
		return machine.Override(prev, req.Username, req.Target, actor)
	})
	if err != nil {
		return nil, err
	}
	res = &OverrideResult{
		Record:   rec,
		Previous: prevStatus,
	}
	logger := eng.Logger.With("username", req.Username, "actor", actor)

	if req.Target == record.StatusUnverified {
		if err := eng.Flags.Remove(ctx, req.Username, allFlags); err != nil {
			logger.Error("failed to clear flags", "err", err)
		}
	} else if err := eng.Flags.Add(ctx, req.Username, []string{FlagModOverride}); err != nil {
		logger.Error("failed to persist flags", "err", err)
	}

	dirs := machine.OverrideDirectives(req.Username, prevStatus, req.Target, actor, pol)
	if req.Ban {
		refused, err := eng.banRefusal(ctx, req.Username)
		if err != nil {
			return res, err
		}
		if refused != "" {
			res.BanRefused = refused
			logger.Warn("refusing to ban moderator")
		} else {
			dirs = append(dirs, directive.Ban(req.Username, "", "Failed human verification (moderator override)", "You have been banned after review of your human verification. If you believe this is a mistake, please reply to this message."))
		}
	}

	_, execErr := eng.execute(ctx, dirs)
	res.Banned = req.Ban && res.BanRefused == "" && execErr == nil

	eng.notify(ctx, AuditEvent{Kind: EventOverride, Username: req.Username, Actor: actor, Status: req.Target})
	logger.Info("gatekeeper status overridden", "from", prevStatus, "to", req.Target, "ban", res.Banned)
	return res, execErr
}

func (eng *Engine) banRefusal(ctx context.Context, username string) (string, error) {
	if eng.Perms == nil {
		return "", nil
	}
	isMod, err := eng.Perms.IsModerator(ctx, username)
	if err != nil {
		return "", fmt.Errorf("checking moderator status: %w", err)
	}
	if isMod {
		return fmt.Sprintf("u/%s is a moderator and can not be banned", username), nil
	}
	return "", nil
}
