package policy

import (
	"fmt"
	"time"

	"github.com/humancheck/gatekeeper/gate/record"
)

// What to do with content posted by a user in a given verification state.
type Action string

const (
	ActionRemove  Action = "remove"
	ActionReport  Action = "report"
	ActionNothing Action = "nothing"
)

func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionRemove, ActionReport, ActionNothing:
		return Action(raw), nil
	}
	return "", fmt.Errorf("%w: unknown enforcement action %q", record.ErrValidation, raw)
}

// How much self-declared AI usage is tolerated before a challenge fails.
type AITolerance string

const (
	AIAll          AITolerance = "all"
	AISome         AITolerance = "some"
	AITranslations AITolerance = "translations"
	AINothing      AITolerance = "nothing"
)

func ParseAITolerance(raw string) (AITolerance, error) {
	switch AITolerance(raw) {
	case AIAll, AISome, AITranslations, AINothing:
		return AITolerance(raw), nil
	}
	return "", fmt.Errorf("%w: unknown AI usage tolerance %q", record.ErrValidation, raw)
}

// Highest record.AIUsage level which still passes.
func (t AITolerance) maxLevel() int {
	switch t {
	case AINothing:
		return record.AIUsageNo.Level()
	case AITranslations:
		return record.AIUsageTranslations.Level()
	case AISome:
		return record.AIUsageSometimes.Level()
	default:
		return record.AIUsageYes.Level()
	}
}

// Allows reports whether the declared usage is within tolerance.
func (t AITolerance) Allows(declared record.AIUsage) bool {
	return declared.Level() <= t.maxLevel()
}

// Enforcement rules and thresholds, as configured by the community's moderators. Loaded once per
// invocation; never cached by the core.
type Policy struct {
	CommunityName string

	ActionOnPending Action
	ActionOnTimeout Action
	BanOnFailed     bool
	BanOnTimeout    bool
	// remove content from failed users as spam, rather than a regular removal
	SpamFailed bool

	// zero disables timeouts
	PendingTimeout       time.Duration
	MinOpenLatency       time.Duration
	MinCompletionLatency time.Duration
	AIUsageAllowed       AITolerance

	NotifyOnRequest bool
	NotifyOnRemoval bool
	TrackInModNotes bool
	// users may open the challenge without having been asked to by a moderator
	AllowConfirmWithoutRequest bool

	RepeatOffenderRemovalThreshold int
	RepeatOffenderBanThreshold     int

	// circuit breaker: maximum number of automated bans per day, across all users
	BanQuotaPerDay int
}

func Default() Policy {
	return Policy{
		CommunityName:                  "community",
		ActionOnPending:                ActionRemove,
		ActionOnTimeout:                ActionRemove,
		BanOnFailed:                    false,
		BanOnTimeout:                   false,
		SpamFailed:                     true,
		PendingTimeout:                 24 * time.Hour,
		MinOpenLatency:                 3 * time.Second,
		MinCompletionLatency:           10 * time.Second,
		AIUsageAllowed:                 AIAll,
		NotifyOnRequest:                true,
		NotifyOnRemoval:                true,
		TrackInModNotes:                true,
		AllowConfirmWithoutRequest:     true,
		RepeatOffenderRemovalThreshold: 3,
		RepeatOffenderBanThreshold:     1,
		BanQuotaPerDay:                 50,
	}
}

func (p *Policy) Validate() error {
	if _, err := ParseAction(string(p.ActionOnPending)); err != nil {
		return err
	}
	if _, err := ParseAction(string(p.ActionOnTimeout)); err != nil {
		return err
	}
	if _, err := ParseAITolerance(string(p.AIUsageAllowed)); err != nil {
		return err
	}
	if p.PendingTimeout < 0 || p.MinOpenLatency < 0 || p.MinCompletionLatency < 0 {
		return fmt.Errorf("%w: policy durations must not be negative", record.ErrValidation)
	}
	if p.BanQuotaPerDay < 0 {
		return fmt.Errorf("%w: ban quota must not be negative", record.ErrValidation)
	}
	return nil
}
