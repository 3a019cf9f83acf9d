// Shared vocabulary for the verification gate: the per-user verification record, challenge
// answers, status values, and the error taxonomy used across packages.
//
// Errors are sentinel values, wrapped with context by callers and matched with errors.Is.
package record
