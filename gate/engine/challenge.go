package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/humancheck/gatekeeper/gate/challenge"
	"github.com/humancheck/gatekeeper/gate/directive"
	"github.com/humancheck/gatekeeper/gate/machine"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
)

// per-user flags
const (
	FlagHoneypot    = "honeypot"
	FlagTooFast     = "too-fast"
	FlagAIUsage     = "ai-usage"
	FlagModOverride = "mod-override"
)

var allFlags = []string{FlagHoneypot, FlagTooFast, FlagAIUsage, FlagModOverride}

// Issues (or re-issues) a challenge to the user, notifying them per policy.
//
// actor is the requesting moderator, who needs the "posts" permission. An empty actor is a
// trusted local request. The record is persisted before any directive runs; directive failures
// are returned (wrapping record.ErrExternal) along with the updated record.
func (eng *Engine) RequestChallenge(ctx context.Context, username, actor string) (rec *record.Record, err error) {
	ctx, done := eng.begin(ctx, "request", username)
	defer func() { done(err) }()
	defer eng.recoverPanic("request", username, &err)

	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if err := eng.checkPermission(ctx, actor, platform.PermPosts); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}

	now := eng.now()
	var dirs []directive.Directive
	var prevStatus record.Status
	rec, err = eng.mutate(ctx, username, func(prev *record.Record) (*record.Record, error) {
		prevStatus = record.StatusUnverified
		if prev != nil {
			prevStatus = prev.Status
		}
		next, d, err := eng.Machine.RequestChallenge(prev, username, actor, pol, now)
		dirs = d
		return next, err
	})
	if err != nil {
		return nil, err
	}

	created, execErr := eng.execute(ctx, dirs)
	if created != "" {
		saved, err := eng.saveConversationID(ctx, username, created)
		if err != nil {
			return rec, err
		}
		if saved != nil {
			rec = saved
		}
	}

	eng.Logger.Info("gatekeeper challenge requested", "username", username, "actor", actor, "prevStatus", prevStatus, "requests", rec.Requests, "directives", len(dirs), "conversation", rec.NotificationConversationID)
	return rec, execErr
}

// What the user sees when they open the challenge form.
type ChallengeView struct {
	Username string        `json:"username"`
	Status   record.Status `json:"status"`
	// the challenge is not open; Message explains why
	Done    bool   `json:"done"`
	Message string `json:"message,omitempty"`

	Token       string `json:"token,omitempty"`
	TokenPrompt string `json:"tokenPrompt,omitempty"`
	// the real username plus look-alikes, shuffled
	UsernameOptions []string         `json:"usernameOptions,omitempty"`
	AIUsageOptions  []record.AIUsage `json:"aiUsageOptions,omitempty"`
	HoneypotLabel   string           `json:"honeypotLabel,omitempty"`
}

// Called when the user opens the challenge form. A pending challenge gets a fresh token, which is
// stored and returned for display. A challenge the user starts on their own leaves them unverified.
func (eng *Engine) OpenChallenge(ctx context.Context, username string) (view *ChallengeView, err error) {
	ctx, done := eng.begin(ctx, "open", username)
	defer func() { done(err) }()
	defer eng.recoverPanic("open", username, &err)

	if err := checkUsername(username); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}

	now := eng.now()
	rec, err := eng.mutate(ctx, username, func(prev *record.Record) (*record.Record, error) {
		next, err := eng.Machine.OpenChallenge(prev, username, pol, now)
		if err != nil {
			return nil, err
		}
		// nothing changed for a settled record; skip the write
		if prev != nil && next.Status.Terminal() && next.Status == prev.Status {
			return prev, nil
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	view = &ChallengeView{
		Username: username,
		Status:   rec.Status,
	}
	if !machine.Scorable(rec) {
		view.Done = true
		view.Message = doneMessage(rec.Status, pol.CommunityName)
		return view, nil
	}
	view.Token = rec.ChallengeToken
	view.TokenPrompt = "T-" + rec.ChallengeToken
	view.UsernameOptions = eng.Machine.Tokens.DecoyIdentities(username, challenge.DefaultDecoyCount)
	view.AIUsageOptions = []record.AIUsage{record.AIUsageNo, record.AIUsageTranslations, record.AIUsageSometimes, record.AIUsageYes}
	view.HoneypotLabel = "Leave this field blank"

	eng.Logger.Info("gatekeeper challenge opened", "username", username, "openLatency", rec.OpenLatencySeconds)
	return view, nil
}

func doneMessage(status record.Status, community string) string {
	switch status {
	case record.StatusVerified:
		return "You have already completed human verification. Thank you!"
	case record.StatusFailed:
		return fmt.Sprintf("Your human verification attempt was not successful. If you believe this is a mistake, please contact the moderators of %s.", community)
	case record.StatusTimeout:
		return fmt.Sprintf("Your human verification request has expired. Please contact the moderators of %s to request a new one.", community)
	default:
		return "There is no human verification pending for your account."
	}
}

// Outcome of a scored challenge submission.
type SubmitResult struct {
	Record  *record.Record `json:"record"`
	Passed  bool           `json:"passed"`
	Reasons []string       `json:"reasons,omitempty"`
	// flags newly attached to the user by this submission
	Flags []string `json:"flags,omitempty"`
}

// Scores a challenge submission and persists the verified or failed record.
//
// The record must be pending; a challenge which has timed out is persisted as such and an
// ErrValidation is returned.
func (eng *Engine) SubmitChallenge(ctx context.Context, username string, ans record.Answers) (res *SubmitResult, err error) {
	ctx, done := eng.begin(ctx, "submit", username)
	defer func() { done(err) }()
	defer eng.recoverPanic("submit", username, &err)

	if err := checkUsername(username); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}

	now := eng.now()
	var passed bool
	var reasons []string
	var rejected error
	rec, err := eng.mutate(ctx, username, func(prev *record.Record) (*record.Record, error) {
		rejected = nil
		next, ok, rs, err := machine.ScoreChallengeSubmission(prev, ans, pol, now)
		if err != nil {
			// still persist a timeout discovered while scoring
			if errors.Is(err, record.ErrValidation) && next != nil && next != prev {
				rejected = err
				return next, nil
			}
			return nil, err
		}
		passed, reasons = ok, rs
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}

	res = &SubmitResult{
		Record:  rec,
		Passed:  passed,
		Reasons: reasons,
		Flags:   submissionFlags(rec, ans, pol),
	}
	logger := eng.Logger.With("username", username)
	if len(res.Flags) > 0 {
		if err := eng.Flags.Add(ctx, username, res.Flags); err != nil {
			logger.Error("failed to persist flags", "err", err)
		}
	}

	dirs, err := eng.circuitBreakBans(ctx, pol, machine.SubmissionDirectives(rec, pol))
	if err != nil {
		return res, err
	}
	_, execErr := eng.execute(ctx, dirs)

	if passed {
		challengeResultCount.WithLabelValues("passed").Inc()
	} else {
		challengeResultCount.WithLabelValues("failed").Inc()
		eng.notify(ctx, AuditEvent{Kind: EventFailed, Username: username, Status: rec.Status, Reasons: reasons})
	}
	logger.Info("gatekeeper challenge submitted", "passed", passed, "reasons", len(reasons), "completionLatency", rec.CompletionLatencySeconds, "flags", res.Flags, "banned", directive.Has(dirs, directive.KindBanUser))
	return res, execErr
}

func submissionFlags(rec *record.Record, ans record.Answers, pol *policy.Policy) []string {
	flags := []string{}
	if strings.TrimSpace(ans.HoneypotEntered) != "" {
		flags = append(flags, FlagHoneypot)
	}
	tooFast := pol.MinCompletionLatency > 0 && rec.CompletionLatencySeconds < pol.MinCompletionLatency.Seconds()
	if rec.TimeNotified != nil && rec.TimeChallengeOpened != nil && pol.MinOpenLatency > 0 && rec.OpenLatencySeconds < pol.MinOpenLatency.Seconds() {
		tooFast = true
	}
	if tooFast {
		flags = append(flags, FlagTooFast)
	}
	if !ans.ScreenReader && !pol.AIUsageAllowed.Allows(ans.AIUsage) {
		flags = append(flags, FlagAIUsage)
	}
	return flags
}
