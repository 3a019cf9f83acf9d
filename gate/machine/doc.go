// Verification state machine.
//
// Lifecycle: unverified -> pending -> {verified, failed, timeout}. Terminal states go back to
// pending only through an explicit new request, and an operator override can force verified,
// failed, or a full reset to unverified from any state.
//
// Timeouts are detected lazily by RefreshIfTimedOut, which callers run before every enforcement
// decision and challenge submission. A user past their window keeps being treated as pending until
// the next event touches their record.
package machine
