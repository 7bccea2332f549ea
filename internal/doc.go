// Package internal holds helpers private to clubAuth: one-time code
// generation, code digests, and namespaced session ids.
//
// # Sub-packages
//
//   - audit - async event dispatch (Dispatcher + Sink implementations)
//   - flows - the OTP, handoff, and password reset challenge flows
//   - notify - async notification dispatch with a bounded queue
//   - reaper - periodic expiry sweep over every session store
//
// # What this package must NOT do
//
//   - Export types that appear in the public clubAuth API.
//   - Be imported by any package outside the clubAuth module.
package internal
