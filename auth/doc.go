// Package auth implements the admin authentication core: login sessions
// bound to client IP and User-Agent, one-time CSRF tokens, brute-force
// rate limiting, PBKDF2 password verification, and a bounded security
// audit log.
//
// All state is held in process memory by design. Sessions are short-lived
// and the service runs as a single node, so nothing here survives a
// restart. Each store guards its own map with one lock and owns a
// context-cancellable background sweep; callers never need a cross-store
// lock because a failed step simply aborts the request.
package auth
