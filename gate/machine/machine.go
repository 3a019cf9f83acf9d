package machine

import (
	"fmt"
	"strings"
	"time"

	"github.com/humancheck/gatekeeper/gate/challenge"
	"github.com/humancheck/gatekeeper/gate/directive"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
)

// Mod note labels attached to audit directives.
const (
	LabelWatch     = "SPAM_WATCH"
	LabelVerified  = "SOLID_CONTRIBUTOR"
	LabelOverride  = "ABUSE_WARNING"
	LabelBotBanned = "BOT_BAN"
)

// Verification lifecycle transitions.
//
// Every method is a pure function of its arguments: the input record is never mutated, time is
// passed in, and side-effects are returned as directives. Randomness comes from Tokens.
type Machine struct {
	Tokens challenge.Generator
}

func New(tokens challenge.Generator) *Machine {
	if tokens == nil {
		tokens = challenge.NewRandomGenerator()
	}
	return &Machine{Tokens: tokens}
}

// Issues (or re-issues) a challenge to the user and moves them to pending.
//
// prev may be nil when no record exists yet. A pending user gets a fresh token and a reminder; a
// user in any other state starts a new cycle with per-attempt fields cleared. The notification
// conversation id is carried over, so repeated requests land in the same message thread.
func (m *Machine) RequestChallenge(prev *record.Record, username, actor string, pol *policy.Policy, now time.Time) (*record.Record, []directive.Directive, error) {
	if err := checkArgs(prev, username, pol); err != nil {
		return nil, nil, err
	}

	var rec *record.Record
	if prev == nil {
		rec = record.New(username)
	} else {
		// so that a lapsed request gets the "timed out" wording
		rec, _ = RefreshIfTimedOut(prev, pol, now)
		rec = rec.Clone()
	}
	prevStatus := rec.Status

	if prevStatus != record.StatusPending {
		rec.ResetAttempt()
		rec.Status = record.StatusPending
	}
	rec.ChallengeToken = m.Tokens.NewToken()
	rec.TimeRequested = record.TimePtr(now)
	rec.Requests++

	dirs := []directive.Directive{}
	if pol.NotifyOnRequest {
		subject, body := RequestMessage(prevStatus, pol.CommunityName)
		dirs = append(dirs, directive.Notify(username, rec.NotificationConversationID, subject, body))
		rec.Notified = true
		rec.TimeNotified = record.TimePtr(now)
	} else {
		// timeout falls back to the request time
		rec.TimeNotified = nil
	}

	if pol.TrackInModNotes {
		note := fmt.Sprintf("Human verification requested (previous status: %s)", prevStatus)
		if actor != "" {
			note += " by " + actor
		}
		dirs = append(dirs, directive.AuditNote(username, note, LabelWatch))
	}
	return rec, dirs, nil
}

// Moves a pending record to timeout when the pending window has elapsed. There is no background
// timer: this must be called at every touchpoint (content events, challenge opens and
// submissions, status reads) before the record is used.
//
// Returns the input record unchanged (same pointer) when no transition happens.
func RefreshIfTimedOut(rec *record.Record, pol *policy.Policy, now time.Time) (*record.Record, bool) {
	if rec == nil || pol == nil || rec.Status != record.StatusPending || pol.PendingTimeout <= 0 {
		return rec, false
	}
	since := rec.PendingSince()
	if since == nil {
		return rec, false
	}
	if now.Sub(*since) <= pol.PendingTimeout {
		return rec, false
	}
	out := rec.Clone()
	out.Status = record.StatusTimeout
	return out, true
}

// Called when the user opens the challenge form. A pending challenge gets a fresh token (the one
// about to be displayed) and the open time is recorded.
//
// Users without a pending request may start a challenge on their own when the policy allows it.
// Such a record stays unverified until it is scored: only a moderator request makes a user pending,
// so opening and abandoning the form never leads to enforcement or a timeout.
//
// Terminal records are returned as-is, for the caller to render a "done" view.
func (m *Machine) OpenChallenge(prev *record.Record, username string, pol *policy.Policy, now time.Time) (*record.Record, error) {
	if err := checkArgs(prev, username, pol); err != nil {
		return nil, err
	}

	var rec *record.Record
	if prev != nil {
		rec, _ = RefreshIfTimedOut(prev, pol, now)
		rec = rec.Clone()
	}

	selfStarted := false
	if rec == nil || rec.Status == record.StatusUnverified {
		if !pol.AllowConfirmWithoutRequest {
			return nil, fmt.Errorf("%w: no verification has been requested for %s", record.ErrValidation, username)
		}
		if rec == nil {
			rec = record.New(username)
		}
		rec.ResetAttempt()
		selfStarted = true
	}

	if rec.Status.Terminal() {
		return rec, nil
	}

	rec.ChallengeToken = m.Tokens.NewToken()
	rec.TimeChallengeOpened = record.TimePtr(now)
	if !selfStarted && rec.TimeNotified != nil {
		rec.OpenLatencySeconds = now.Sub(*rec.TimeNotified).Seconds()
	} else {
		rec.OpenLatencySeconds = 0
	}
	return rec, nil
}

// Scores a challenge submission against the current (refreshed) record.
//
// Every rule is evaluated, and every violation is reported, in a fixed order: open latency,
// completion latency, human/bot declarations, AI usage, username selection, token, honeypot field,
// acknowledgement. The record becomes verified only if there are no violations.
//
// The record must be pending, or unverified with a self-started challenge open. Otherwise
// (including when it just timed out) an ErrValidation is returned, along with the refreshed record
// so the caller can persist a timeout transition.
func ScoreChallengeSubmission(prev *record.Record, ans record.Answers, pol *policy.Policy, now time.Time) (*record.Record, bool, []string, error) {
	if prev == nil {
		return nil, false, nil, fmt.Errorf("%w: no challenge has been issued", record.ErrValidation)
	}
	if pol == nil {
		return nil, false, nil, fmt.Errorf("%w: missing policy", record.ErrValidation)
	}
	if err := ans.Validate(); err != nil {
		return nil, false, nil, err
	}

	refreshed, _ := RefreshIfTimedOut(prev, pol, now)
	if !Scorable(refreshed) {
		return refreshed, false, nil, fmt.Errorf("%w: challenge is not pending (status %s)", record.ErrValidation, refreshed.Status)
	}
	rec := refreshed.Clone()

	opened := now
	if rec.TimeChallengeOpened != nil {
		opened = *rec.TimeChallengeOpened
	}
	rec.TimeChallengeCompleted = record.TimePtr(now)
	rec.CompletionLatencySeconds = now.Sub(opened).Seconds()

	reasons := []string{}
	// opening latency only means something when the user was sent a notification to react to
	if rec.Status == record.StatusPending && rec.TimeNotified != nil && rec.TimeChallengeOpened != nil && pol.MinOpenLatency > 0 {
		if rec.OpenLatencySeconds < pol.MinOpenLatency.Seconds() {
			reasons = append(reasons, fmt.Sprintf("Challenge opened too quickly: %.1fs (minimum %.0fs)", rec.OpenLatencySeconds, pol.MinOpenLatency.Seconds()))
		}
	}
	if pol.MinCompletionLatency > 0 && rec.CompletionLatencySeconds < pol.MinCompletionLatency.Seconds() {
		reasons = append(reasons, fmt.Sprintf("Challenge completed too quickly: %.1fs (minimum %.0fs)", rec.CompletionLatencySeconds, pol.MinCompletionLatency.Seconds()))
	}
	if !ans.Human {
		reasons = append(reasons, "Human not selected")
	}
	if ans.Bot {
		reasons = append(reasons, "Bot selected")
	}
	if !ans.ScreenReader && !pol.AIUsageAllowed.Allows(ans.AIUsage) {
		reasons = append(reasons, fmt.Sprintf("AI usage declared: %q (allowed: %s)", ans.AIUsage, pol.AIUsageAllowed))
	}
	if !usernameMatches(rec.Username, ans.UsernameConfirm) {
		reasons = append(reasons, fmt.Sprintf("Username selected %q does not match %q", ans.UsernameConfirm, rec.Username))
	}
	if !challenge.TokensMatch(rec.ChallengeToken, ans.TokenEntered) {
		reasons = append(reasons, fmt.Sprintf("Token entered %q does not match token displayed %q", ans.TokenEntered, rec.ChallengeToken))
	}
	if strings.TrimSpace(ans.HoneypotEntered) != "" {
		reasons = append(reasons, fmt.Sprintf("Field marked \"leave blank\" was filled in: %q", ans.HoneypotEntered))
	}
	if !ans.Acknowledged {
		reasons = append(reasons, "Acknowledgement not selected")
	}

	a := ans
	rec.Answers = &a
	rec.Attempts++
	passed := len(reasons) == 0
	if passed {
		rec.Status = record.StatusVerified
		rec.FailureReasons = nil
	} else {
		rec.Status = record.StatusFailed
		rec.FailureReasons = reasons
		rec.Failures++
	}
	return rec, passed, rec.FailureReasons, nil
}

// Reports whether a submission can be scored against the record: a requested challenge, or one
// the user opened on their own.
func Scorable(rec *record.Record) bool {
	if rec == nil {
		return false
	}
	switch rec.Status {
	case record.StatusPending:
		return true
	case record.StatusUnverified:
		return rec.ChallengeToken != "" && rec.TimeChallengeOpened != nil
	}
	return false
}

// Side-effects of a scored submission: audit note, and a ban for failures when the policy says so.
func SubmissionDirectives(rec *record.Record, pol *policy.Policy) []directive.Directive {
	dirs := []directive.Directive{}
	switch rec.Status {
	case record.StatusVerified:
		if pol.TrackInModNotes {
			note := fmt.Sprintf("Human verification passed (completed in %.0fs)", rec.CompletionLatencySeconds)
			dirs = append(dirs, directive.AuditNote(rec.Username, note, LabelVerified))
		}
	case record.StatusFailed:
		if pol.TrackInModNotes {
			note := "Human verification failed: " + strings.Join(rec.FailureReasons, "; ")
			dirs = append(dirs, directive.AuditNote(rec.Username, note, LabelWatch))
		}
		if pol.BanOnFailed {
			dirs = append(dirs, directive.Ban(rec.Username, "", banReasonFailed, banMessageFailed))
		}
	}
	return dirs
}

// Forces a verification status without running the challenge. Permission checks happen before
// this is called.
//
// Overriding to unverified is a full reset: the returned record is nil, and the caller deletes
// the stored one. Verified and failed overrides keep timestamps and failure reasons (for audit) and
// mark the record as overridden.
func Override(prev *record.Record, username string, target record.Status, actor string) (*record.Record, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: missing username", record.ErrValidation)
	}
	if prev != nil && prev.Username != username {
		return nil, fmt.Errorf("%w: record belongs to %s, not %s", record.ErrValidation, prev.Username, username)
	}
	switch target {
	case record.StatusUnverified:
		return nil, nil
	case record.StatusVerified, record.StatusFailed:
		var rec *record.Record
		if prev == nil {
			rec = record.New(username)
		} else {
			rec = prev.Clone()
		}
		rec.Status = target
		rec.ModOverridden = true
		rec.OverriddenBy = actor
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: cannot override verification status to %s", record.ErrValidation, target)
	}
}

func OverrideDirectives(username string, prevStatus, target record.Status, actor string, pol *policy.Policy) []directive.Directive {
	if !pol.TrackInModNotes {
		return []directive.Directive{}
	}
	note := fmt.Sprintf("Human verification overridden from %s to %s by %s", prevStatus, target, actor)
	return []directive.Directive{directive.AuditNote(username, note, LabelOverride)}
}

func usernameMatches(username, selected string) bool {
	selected = strings.TrimPrefix(strings.TrimSpace(selected), "u/")
	return selected != "" && strings.EqualFold(username, selected)
}

func checkArgs(prev *record.Record, username string, pol *policy.Policy) error {
	if username == "" {
		return fmt.Errorf("%w: missing username", record.ErrValidation)
	}
	if pol == nil {
		return fmt.Errorf("%w: missing policy", record.ErrValidation)
	}
	if prev != nil && prev.Username != username {
		return fmt.Errorf("%w: record belongs to %s, not %s", record.ErrValidation, prev.Username, username)
	}
	return nil
}
