// Package middleware guards HTTP routes with the login tokens clubAuth
// issues.
//
// [Guard] reads the Authorization header, calls Authenticate, and stores the
// resolved principal in the request context. [RequireRole] narrows a guarded
// route to specific roles.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to the engine).
//   - Access session stores.
package middleware
