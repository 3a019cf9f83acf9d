// Per-user flags recorded by the gate (honeypot hits, fast submissions, moderator overrides).
package flagstore
