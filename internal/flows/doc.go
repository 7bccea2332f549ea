// Package flows implements the three challenge flows behind login and
// password reset: numeric OTP codes, cross-device handoff links, and the
// two-phase reset code.
//
// Every state change on a challenge record goes through a single
// session.Store Mutate or TakeIf call, so concurrent verify, confirm, and
// poll calls on one id are serialized by the store. Records are never read,
// checked, and written back in separate steps.
//
// # Architecture boundaries
//
// Flows own no resources. Stores, the token issuer, the principal lookup,
// the clock, and the code generator are injected by the Engine through the
// *Deps structs.
//
// # What this package must NOT do
//
//   - Import clubAuth (to avoid import cycles).
//   - Send notifications, emit audit events, or count metrics.
package flows
