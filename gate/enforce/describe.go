package enforce

import (
	"fmt"
	"strings"

	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
)

// Moderator-facing summary of a user's verification status.
type Description struct {
	Title string `json:"title"`
	// multi-line text: status intro, current enforcement, and consequences of proceeding
	Body string `json:"body"`
	// label for the "request verification" action, as offered in this state
	ActionLabel string `json:"actionLabel"`
	// enforcement currently applied to new content (without considering bans)
	Current Decision `json:"current"`
}

// Renders what is currently enforced against a user and what will happen if a moderator sends a
// new verification request.
func Describe(username string, status record.Status, pol *policy.Policy, banned bool) Description {
	d := Description{
		Current: Decide(status, pol, KindPost),
	}

	switch status {
	case record.StatusVerified:
		d.Title = fmt.Sprintf("u/%s Verified", username)
		d.ActionLabel = "Request Verification Again"
	case record.StatusPending:
		d.Title = fmt.Sprintf("u/%s Verification Pending", username)
		d.ActionLabel = "Send Reminder"
	case record.StatusTimeout:
		d.Title = fmt.Sprintf("u/%s Verification Timed Out", username)
		d.ActionLabel = "Request Verification Again"
	case record.StatusFailed:
		d.Title = fmt.Sprintf("u/%s Verification Failed", username)
		d.ActionLabel = "Request Verification Again"
	default:
		d.Title = fmt.Sprintf("u/%s Not Verified", username)
		d.ActionLabel = "Request Verification"
	}

	lines := []string{}
	switch status {
	case record.StatusVerified:
		lines = append(lines, "User has successfully completed verification.")
	case record.StatusPending:
		lines = append(lines, "A verification request has been sent.")
	case record.StatusTimeout:
		lines = append(lines, "The user did not complete verification in time.")
	case record.StatusFailed:
		lines = append(lines, "The user failed verification.")
	default:
		lines = append(lines, "This user has not been verified.")
	}

	current := []string{}
	if banned {
		current = append(current, "User is banned from posting")
	} else {
		switch d.Current.Action {
		case ActionRemove:
			current = append(current, "Content is currently being removed")
		case ActionSpam:
			current = append(current, "Content is currently being removed as spam")
		case ActionReport:
			current = append(current, "Content is currently being reported")
		}
		if d.Current.BanUser {
			current = append(current, "New content gets the user banned")
		}
	}
	if len(current) > 0 {
		lines = append(lines, "", "Current Enforcement:")
		lines = append(lines, current...)
	}

	verb := "send a new request"
	if status == record.StatusPending {
		verb = "send a reminder"
	}
	lines = append(lines, "", fmt.Sprintf("Press %q to %s.", d.ActionLabel, verb))

	if status != record.StatusPending && pol != nil {
		lines = append(lines, consequences(status, pol, banned)...)
	}

	d.Body = strings.Join(lines, "\n")
	return d
}

func consequences(status record.Status, pol *policy.Policy, banned bool) []string {
	pending := Decide(record.StatusPending, pol, KindPost)
	timeout := Decide(record.StatusTimeout, pol, KindPost)

	remove := []string{}
	report := []string{}
	ban := []string{}
	if !banned {
		switch pending.Action {
		case ActionRemove:
			remove = append(remove, "Until verification is complete")
		case ActionReport:
			report = append(report, "Until verification is complete")
		}
		switch timeout.Action {
		case ActionRemove:
			remove = append(remove, "If verification times out")
		case ActionReport:
			report = append(report, "If verification times out")
		}
		remove = append(remove, "If verification fails")
	}
	if pol.BanOnTimeout {
		ban = append(ban, "If verification times out")
	}
	if pol.BanOnFailed {
		if banned {
			ban = append(ban, "User will stay banned")
		} else {
			ban = append(ban, "If verification fails")
		}
	}

	out := []string{"", "If you proceed:"}
	if len(remove) > 0 {
		out = append(out, "Content Will Be Auto-Removed:")
		out = append(out, bullets(remove)...)
	}
	if len(report) > 0 {
		out = append(out, "Content Will Be Auto-Reported:")
		out = append(out, bullets(report)...)
	}
	if len(ban) > 0 {
		out = append(out, "User Will Be Banned:")
		out = append(out, bullets(ban)...)
	}
	if len(out) == 2 {
		return nil
	}
	return out
}

func bullets(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = "- " + s
	}
	return out
}

// An operator override offered from the moderator menu.
type OverrideOption struct {
	Target record.Status `json:"target"`
	Label  string        `json:"label"`
}

// Override targets available from the given status, labelled with their effect on enforcement.
func OverrideOptions(status record.Status, pol *policy.Policy) []OverrideOption {
	note := ""
	switch Decide(status, pol, KindPost).Action {
	case ActionRemove, ActionSpam:
		note = " (Stops Removing Content)"
	case ActionReport:
		note = " (Stops Reporting Content)"
	}
	failNote := " (Starts Removing New Content)"
	if pol != nil && pol.BanOnFailed {
		failNote = " (Bans User)"
	}
	again := ""
	if status == record.StatusTimeout || status == record.StatusFailed {
		again = " Again"
	}

	opts := []OverrideOption{}
	if status != record.StatusVerified {
		opts = append(opts, OverrideOption{Target: record.StatusVerified, Label: "Mark as Verified" + note})
	}
	if status != record.StatusUnverified {
		opts = append(opts, OverrideOption{Target: record.StatusUnverified, Label: "Mark as Unverified" + note})
	}
	if status != record.StatusFailed {
		opts = append(opts, OverrideOption{Target: record.StatusFailed, Label: "Mark as Failed" + again + failNote})
	}
	return opts
}
