// Package session provides the keyed, TTL-bounded record store behind every
// pending authentication flow (OTP logins, biometric handoffs, password
// resets).
//
// # Backends
//
// [MemoryStore] keeps records in process with one lock per record.
// [RedisStore] shares records across processes and serializes per-key
// mutations with WATCH/MULTI transactions. Both satisfy [Store].
//
// # Expiry
//
// Records expose their own expiry through [Record]. Stores never hide an
// expired record from Get or Mutate; callers decide what expiry means for
// their flow. [Store.SweepExpired] removes what the lazy paths never touch
// again.
//
// # What this package must NOT do
//
//   - Import clubAuth, jwt, or internal/flows (no upward imports).
//   - Interpret record contents beyond Expiry.
package session
