// Human-verification gate for community moderation.
//
// This package (`github.com/humancheck/gatekeeper/gate`) gates a user's ability to post and comment behind a short human-verification challenge, and enforces that gate against incoming content. Moderators request verification for a user; the user opens and submits a challenge; content submitted while the user is pending, timed out, or failed is removed, reported, or gets the user banned, depending on the community's policy.
//
// The core is a pure state machine (`gate/machine`) and a pure enforcement decision table (`gate/enforce`), which emit side-effects as plain data (`gate/directive`). The `gate/engine` package wires these to storage, policy, and the hosting platform. See `cmd/gatekeeper` for a daemon built on this package.
package gate
