// Package jwt signs and verifies the purpose-scoped claim tokens used by the
// login flows: short-lived handoff tokens embedded in confirmation links and
// login tokens handed to clients on success.
//
// Signing method and key material are injected through [Config]; no secret is
// read from the environment at call time.
package jwt
