package enforce

import (
	"fmt"

	"github.com/humancheck/gatekeeper/gate/directive"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
)

type Action string

const (
	ActionAllow  Action = "allow"
	ActionRemove Action = "remove"
	ActionSpam   Action = "spam"
	ActionReport Action = "report"
)

type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
)

func ParseContentKind(raw string) (ContentKind, error) {
	switch ContentKind(raw) {
	case KindPost, KindComment:
		return ContentKind(raw), nil
	}
	return "", fmt.Errorf("%w: unknown content kind %q", record.ErrValidation, raw)
}

// A piece of content submitted by a user, as delivered by the platform's submit event.
type Content struct {
	ID        string      `json:"id"`
	Kind      ContentKind `json:"kind"`
	Author    string      `json:"author"`
	Permalink string      `json:"permalink,omitempty"`
}

func (c *Content) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing content id", record.ErrValidation)
	}
	if c.Author == "" {
		return fmt.Errorf("%w: missing content author", record.ErrValidation)
	}
	if _, err := ParseContentKind(string(c.Kind)); err != nil {
		return err
	}
	return nil
}

// Outcome of an enforcement decision for a single piece of content.
//
// When BanUser is set the ban takes precedence: the content action is not carried out separately.
type Decision struct {
	Status     record.Status `json:"status"`
	Action     Action        `json:"action"`
	Reason     string        `json:"reason,omitempty"`
	BanUser    bool          `json:"banUser"`
	BanReason  string        `json:"banReason,omitempty"`
	BanMessage string        `json:"banMessage,omitempty"`
}

// Enforced reports whether the decision results in any moderation action at all.
func (d Decision) Enforced() bool {
	return d.BanUser || d.Action != ActionAllow
}

// Maps a (timeout-refreshed) verification status to a moderation action, per policy.
//
// Verified and unverified users are allowed. Pending and timed-out users get the configured
// action, where "nothing" means allow. Failed users always have their content removed (as spam if
// configured). Timeout and failure can additionally trigger a ban.
func Decide(status record.Status, pol *policy.Policy, kind ContentKind) Decision {
	dec := Decision{
		Status: status,
		Action: ActionAllow,
	}
	if pol == nil {
		return dec
	}

	switch status {
	case record.StatusPending:
		dec.Action = fromPolicy(pol.ActionOnPending)
		dec.Reason = reasonFor("Human verification pending", dec.Action)
	case record.StatusTimeout:
		dec.Action = fromPolicy(pol.ActionOnTimeout)
		dec.Reason = reasonFor("Human verification timed out", dec.Action)
		if pol.BanOnTimeout {
			dec.BanUser = true
			dec.BanReason = "Failure to complete human verification in time, banned automatically"
			dec.BanMessage = "You have been banned for failing to complete the human verification process in time. If you believe this is a mistake, please reply to this message."
		}
	case record.StatusFailed:
		dec.Action = ActionRemove
		if pol.SpamFailed {
			dec.Action = ActionSpam
		}
		dec.Reason = "Human verification failed"
		if pol.BanOnFailed {
			dec.BanUser = true
			dec.BanReason = "Failed human verification, banned automatically"
			dec.BanMessage = "You have been banned for failing the human verification process. If you believe this is a mistake, please reply to this message."
		}
	}
	return dec
}

// Expands a decision into directives for the given content.
//
// A ban yields a single ban directive. Removals come with a removal note and, when the policy
// enables it, a notice to the user in their existing notification thread (or a new one). Reports
// yield a single report directive.
func Directives(dec Decision, rec *record.Record, content Content, pol *policy.Policy) []directive.Directive {
	dirs := []directive.Directive{}
	if dec.BanUser {
		dirs = append(dirs, directive.Ban(content.Author, content.ID, dec.BanReason, dec.BanMessage))
		return dirs
	}

	switch dec.Action {
	case ActionRemove, ActionSpam:
		dirs = append(dirs, directive.Remove(content.Author, content.ID, dec.Action == ActionSpam, dec.Reason))
		dirs = append(dirs, directive.AuditNote(content.Author, fmt.Sprintf("%s: %s %s removed", dec.Reason, content.Kind, content.ID), ""))
		if pol != nil && pol.NotifyOnRemoval {
			convID := ""
			if rec != nil {
				convID = rec.NotificationConversationID
			}
			subject, body := RemovalMessage(dec.Status, content, communityName(pol))
			dirs = append(dirs, directive.Notify(content.Author, convID, subject, body))
		}
	case ActionReport:
		dirs = append(dirs, directive.Report(content.Author, content.ID, dec.Reason))
	}
	return dirs
}

func fromPolicy(a policy.Action) Action {
	switch a {
	case policy.ActionRemove:
		return ActionRemove
	case policy.ActionReport:
		return ActionReport
	default:
		return ActionAllow
	}
}

func reasonFor(base string, a Action) string {
	if a == ActionReport {
		return base + ", please review"
	}
	return base
}

func communityName(pol *policy.Policy) string {
	if pol == nil || pol.CommunityName == "" {
		return "the community"
	}
	return pol.CommunityName
}
