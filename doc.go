// Package goCredential provides a secret-credential lifecycle engine with
// fingerprint-indexed lookup, Argon2id possession proofs, Redis-backed session
// controls, and lazy migration of pre-fingerprint legacy records.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goCredential is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (CredentialInfo, IssueResult, MetricsSnapshot, etc.). All internal coordination —
// storage encoding, audit dispatch, counter plumbing — lives under internal/ and the
// credential, secret, and scope sub-packages.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store records, or secret hashes in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Distinguish rejection causes to callers: every failed proof of possession surfaces
//     as the same [ErrCredentialRejected].
//
// # Performance contract
//
// Verify is the hot path. A fingerprint hit costs two Redis GETs plus one Argon2id
// computation; the Argon2id work dominates and is bounded by [SecretConfig]. Issue,
// Revoke, and session-limit enforcement each complete in a single scripted Redis call.
// Rotate verifies the old credential, then runs the issue and revoke scripts.
package goCredential
