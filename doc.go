// Package clubAuth orchestrates passwordless login and password reset for a
// club membership service.
//
// A login opens two independent paths at once: a numeric code sent to the
// member, and a signed handoff link that a second device opens to confirm
// while the first device polls for the result. A password reset is a
// separate two-phase flow: verify a code, then set the new password.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// clubAuth is the public surface. It exposes [Engine], [Builder], [Config],
// and the result types. Flow state machines, audit dispatch, notification
// workers, and the expiry reaper live under internal/. Session state lives in
// process memory unless [Builder.WithRedis] is used; either way it is
// ephemeral and a restart discards every open challenge.
//
// # What this package must NOT do
//
//   - Expose session records, Redis clients, or stored code digests.
//   - Log or audit codes, tokens, or passwords.
//   - Fail an operation because a notification could not be delivered.
//   - Import any sub-package that re-imports clubAuth (no import cycles).
package clubAuth
