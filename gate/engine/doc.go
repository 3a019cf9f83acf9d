// Runtime for the verification gate.
//
// An Engine ties the pure state machine (package machine) and enforcement decisions (package
// enforce) to storage, policy, and the hosting platform. Each entry point loads the policy, reads
// and refreshes the user's record (timeouts are only ever detected lazily, here), persists the
// result, and then executes side-effect directives. Directive execution is best-effort and happens
// after the record is stored.
package engine
