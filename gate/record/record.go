package record

import (
	"fmt"
	"time"
)

// Verification lifecycle state of a single user.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusPending    Status = "pending"
	StatusVerified   Status = "verified"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
)

var allStatuses = []Status{StatusUnverified, StatusPending, StatusVerified, StatusFailed, StatusTimeout}

func ParseStatus(raw string) (Status, error) {
	for _, s := range allStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown verification status %q", ErrValidation, raw)
}

// Terminal statuses are stable until an explicit re-request or override.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusFailed || s == StatusTimeout
}

func (s Status) String() string {
	return string(s)
}

// Self-declared use of AI tools when writing posts or comments, ordered from least to most.
type AIUsage string

const (
	AIUsageNo           AIUsage = "no"
	AIUsageTranslations AIUsage = "translations"
	AIUsageSometimes    AIUsage = "sometimes"
	AIUsageYes          AIUsage = "yes"
)

// Level returns the ordinal of the declaration; unknown values rank highest.
func (a AIUsage) Level() int {
	switch a {
	case AIUsageNo:
		return 0
	case AIUsageTranslations:
		return 1
	case AIUsageSometimes:
		return 2
	default:
		return 3
	}
}

// Answers submitted for a single challenge attempt.
type Answers struct {
	Human           bool    `json:"human"`
	Bot             bool    `json:"bot"`
	AIUsage         AIUsage `json:"aiUsage"`
	ScreenReader    bool    `json:"screenReader"`
	UsernameConfirm string  `json:"usernameConfirm"`
	TokenEntered    string  `json:"tokenEntered"`
	// value of the "leave this blank" field
	HoneypotEntered string `json:"honeypotEntered"`
	Acknowledged    bool   `json:"acknowledged"`
}

// Rejects submissions with a missing or unknown AI usage declaration. Screen-reader users may skip
// that question.
func (a *Answers) Validate() error {
	switch a.AIUsage {
	case AIUsageNo, AIUsageTranslations, AIUsageSometimes, AIUsageYes:
		return nil
	case "":
		if a.ScreenReader {
			return nil
		}
		return fmt.Errorf("%w: missing AI usage answer", ErrValidation)
	default:
		return fmt.Errorf("%w: unknown AI usage answer %q", ErrValidation, a.AIUsage)
	}
}

// Persisted per-user verification state.
//
// Status is only ever changed by the state machine (package machine). Everything else in the
// system reads records, hands them to the machine, and stores what comes back.
type Record struct {
	Username string `json:"username"`
	Status   Status `json:"status"`
	// challenge secret, regenerated whenever a challenge is issued or opened
	ChallengeToken string `json:"challengeToken,omitempty"`

	TimeRequested          *time.Time `json:"timeRequested,omitempty"`
	TimeNotified           *time.Time `json:"timeNotified,omitempty"`
	TimeChallengeOpened    *time.Time `json:"timeChallengeOpened,omitempty"`
	TimeChallengeCompleted *time.Time `json:"timeChallengeCompleted,omitempty"`

	// notified (or requested) -> challenge opened
	OpenLatencySeconds float64 `json:"openLatencySeconds,omitempty"`
	// challenge opened -> challenge submitted
	CompletionLatencySeconds float64 `json:"completionLatencySeconds,omitempty"`

	// outbound message thread, reused for every notification to this user
	NotificationConversationID string `json:"notificationConversationId,omitempty"`
	Notified                   bool   `json:"notified,omitempty"`

	ModOverridden bool   `json:"modOverridden,omitempty"`
	OverriddenBy  string `json:"overriddenBy,omitempty"`

	FailureReasons []string `json:"failureReasons,omitempty"`
	Answers        *Answers `json:"answers,omitempty"`

	// historical counters, kept across challenge cycles
	Requests int `json:"requests,omitempty"`
	Attempts int `json:"attempts,omitempty"`
	Failures int `json:"failures,omitempty"`

	// bumped by the record store on every write
	Version int64 `json:"version"`
}

// Returns a fresh record in the implicit default state.
func New(username string) *Record {
	return &Record{
		Username: username,
		Status:   StatusUnverified,
	}
}

// Deep copy, so that state transitions never alias the caller's record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.TimeRequested = cloneTime(r.TimeRequested)
	out.TimeNotified = cloneTime(r.TimeNotified)
	out.TimeChallengeOpened = cloneTime(r.TimeChallengeOpened)
	out.TimeChallengeCompleted = cloneTime(r.TimeChallengeCompleted)
	if r.FailureReasons != nil {
		out.FailureReasons = append([]string{}, r.FailureReasons...)
	}
	if r.Answers != nil {
		a := *r.Answers
		out.Answers = &a
	}
	return &out
}

// Clears per-attempt fields ahead of a new challenge cycle. Counters, the conversation id and the
// notification flag survive.
func (r *Record) ResetAttempt() {
	r.TimeChallengeOpened = nil
	r.TimeChallengeCompleted = nil
	r.OpenLatencySeconds = 0
	r.CompletionLatencySeconds = 0
	r.FailureReasons = nil
	r.Answers = nil
	r.ModOverridden = false
	r.OverriddenBy = ""
}

// Reference time for timeout detection: when the user was notified, falling back to when the
// challenge was requested (notification can be disabled by policy).
func (r *Record) PendingSince() *time.Time {
	if r.TimeNotified != nil {
		return r.TimeNotified
	}
	return r.TimeRequested
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func TimePtr(t time.Time) *time.Time {
	return &t
}
