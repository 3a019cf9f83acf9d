// Enforcement decisions for content submitted by users who are subject to human verification.
//
// Decide is a pure mapping from a verification status and policy to an action; Directives expands
// that action into the side-effects to run for a specific piece of content. Callers must refresh
// the record for timeouts before deciding.
package enforce
