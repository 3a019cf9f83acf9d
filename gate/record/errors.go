package record

import (
	"errors"
)

// Malformed or missing event fields, or an operation which isn't valid in the current state. No
// state was changed.
var ErrValidation = errors.New("invalid request")

// Operator lacks the required permissions. No state was changed.
var ErrPermission = errors.New("permission denied")

// No record exists for the user. Callers generally treat this as an unverified user.
var ErrNotFound = errors.New("verification record not found")

// Platform API failure while executing directives. State changes already persisted are not
// rolled back.
var ErrExternal = errors.New("external call failed")

// Conditional write lost a race with a concurrent writer.
var ErrVersionConflict = errors.New("record version conflict")
