// Package middleware exposes HTTP middleware adapters for credential
// authentication and scope enforcement built on top of goCredential.Engine
// verification.
//
// # Guards
//
//   - [Guard] — extracts the secret from Authorization Bearer or X-API-Key,
//     verifies it, and injects the credential into the request context.
//   - [RequireScopes] — rejects requests whose verified credential lacks any
//     of the named scopes. Runs after Guard.
//
// Each guard returns 401 or 403 with a fixed body; rejection causes are never
// surfaced to clients.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement verification logic itself — all decisions are delegated to
// Engine.Verify and the scope predicates.
//
// # What this package must NOT do
//
//   - Hash, fingerprint, or log secrets (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Leak whether a rejection came from a missing, expired, or tampered
//     credential.
package middleware
