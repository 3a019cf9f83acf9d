// Enforcement policy for the verification gate: which action to take on content from pending,
// timed-out, and failed users, challenge thresholds, and notification toggles.
//
// Policies come from a Provider, either a fixed value or a JSON settings file which is re-read on
// every call.
package policy
