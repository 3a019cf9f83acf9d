package gate

import (
	"github.com/humancheck/gatekeeper/gate/countstore"
	"github.com/humancheck/gatekeeper/gate/directive"
	"github.com/humancheck/gatekeeper/gate/enforce"
	"github.com/humancheck/gatekeeper/gate/engine"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
)

type Engine = engine.Engine
type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier
type PermissionChecker = engine.PermissionChecker
type ModeratorPermissions = engine.ModeratorPermissions

type OverrideRequest = engine.OverrideRequest
type OverrideResult = engine.OverrideResult
type ChallengeView = engine.ChallengeView
type SubmitResult = engine.SubmitResult
type StatusView = engine.StatusView
type Breakdown = engine.Breakdown

type Record = record.Record
type Status = record.Status
type Answers = record.Answers
type Policy = policy.Policy
type Directive = directive.Directive
type Decision = enforce.Decision
type Content = enforce.Content

var (
	StatusUnverified = record.StatusUnverified
	StatusPending    = record.StatusPending
	StatusVerified   = record.StatusVerified
	StatusFailed     = record.StatusFailed
	StatusTimeout    = record.StatusTimeout

	ErrValidation      = record.ErrValidation
	ErrPermission      = record.ErrPermission
	ErrNotFound        = record.ErrNotFound
	ErrExternal        = record.ErrExternal
	ErrVersionConflict = record.ErrVersionConflict

	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour
)
