// Package audit dispatches orchestrator audit events asynchronously.
//
// # Components
//
//   - [Sink] - event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher] - buffered relay with drop-if-full or block-if-full semantics.
//   - [Event] - one record: type, subject, session, client IP, request id, outcome.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. Which events to emit is
// decided by the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import clubAuth or any sibling internal package.
//   - Receive codes, tokens, or passwords in event fields.
package audit
