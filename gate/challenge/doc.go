// Anti-automation challenge material: short random tokens, decoy identity lists for the
// "select your username" question, and the order-insensitive token comparison used when scoring.
package challenge
