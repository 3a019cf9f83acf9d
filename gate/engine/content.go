package engine

import (
	"context"

	"github.com/humancheck/gatekeeper/gate/enforce"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
)

// Handles a content submission event: refreshes the author's verification status, decides on an
// enforcement action, and carries it out.
//
// The returned decision reflects what was attempted; directive failures come back as an error
// wrapping record.ErrExternal alongside it.
func (eng *Engine) ProcessContent(ctx context.Context, content enforce.Content) (dec *enforce.Decision, err error) {
	ctx, done := eng.begin(ctx, "content", content.Author)
	defer func() { done(err) }()
	defer eng.recoverPanic("content", content.Author, &err)

	if err := content.Validate(); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := eng.refresh(ctx, content.Author, pol)
	if err != nil {
		return nil, err
	}

	d, err := eng.decide(ctx, rec, pol, content.Kind)
	if err != nil {
		return nil, err
	}
	dec = &d
	contentDecisionCount.WithLabelValues(string(dec.Status), string(dec.Action)).Inc()

	dirs := enforce.Directives(*dec, rec, content, pol)
	created, execErr := eng.execute(ctx, dirs)
	if created != "" && rec != nil {
		if _, err := eng.saveConversationID(ctx, content.Author, created); err != nil {
			eng.Logger.Error("failed to persist notification conversation", "err", err, "username", content.Author)
		}
	}

	eng.Logger.Info("gatekeeper content processed", "username", content.Author, "contentID", content.ID, "kind", content.Kind, "status", dec.Status, "action", dec.Action, "ban", dec.BanUser, "directives", len(dirs))
	return dec, execErr
}

// Applies the decision table to a refreshed record, and gates any automated ban on the daily
// quota. When the quota is exhausted the content action still applies.
func (eng *Engine) decide(ctx context.Context, rec *record.Record, pol *policy.Policy, kind enforce.ContentKind) (enforce.Decision, error) {
	status := record.StatusUnverified
	username := ""
	if rec != nil {
		status = rec.Status
		username = rec.Username
	}
	dec := enforce.Decide(status, pol, kind)
	if dec.BanUser {
		ok, err := eng.allowBan(ctx, pol, username)
		if err != nil {
			return dec, err
		}
		if !ok {
			dec.BanUser = false
			dec.BanReason = ""
			dec.BanMessage = ""
		}
	}
	return dec, nil
}

// Computes the enforcement decision for a hypothetical submission by the user, without carrying it
// out. Any timeout transition is persisted.
func (eng *Engine) DecideEnforcement(ctx context.Context, username string, kind enforce.ContentKind) (dec *enforce.Decision, err error) {
	ctx, done := eng.begin(ctx, "decide", username)
	defer func() { done(err) }()
	defer eng.recoverPanic("decide", username, &err)

	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if _, err := enforce.ParseContentKind(string(kind)); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := eng.refresh(ctx, username, pol)
	if err != nil {
		return nil, err
	}
	status := record.StatusUnverified
	if rec != nil {
		status = rec.Status
	}
	d := enforce.Decide(status, pol, kind)
	return &d, nil
}

// Applies and persists a pending timeout for the user, if due. Returns the current record, or nil
// when the user has none.
func (eng *Engine) RefreshIfTimedOut(ctx context.Context, username string) (rec *record.Record, err error) {
	ctx, done := eng.begin(ctx, "refresh", username)
	defer func() { done(err) }()
	defer eng.recoverPanic("refresh", username, &err)

	if err := checkUsername(username); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}
	return eng.refresh(ctx, username, pol)
}
