// Package credential implements record storage for opaque credentials:
// the record model, its binary wire format, and the Redis and Postgres
// backed stores.
//
// # Record lifecycle
//
// A record is born fingerprinted ([FormatFingerprinted]) through
// [Store.Create], or pre-exists as legacy data ([FormatLegacy]) written by a
// system that stored raw-comparable values. Legacy records upgrade in place
// exactly once via [Store.MarkMigrated] on their own successful
// verification. Revocation is a one-way flag; expiry is a timestamp
// comparison against the caller's clock. Stores never decide acceptance —
// they filter to usable records and leave proof of possession to the caller.
//
// # Storage layout
//
// Redis keys are namespaced under a configurable prefix:
//
//	<prefix>:cr:<id>    record blob (binary, see codec.go)
//	<prefix>:cf:<hex>   fingerprint index -> record id
//	<prefix>:cl:<raw>   legacy raw index  -> record id
//	<prefix>:co:<owner> per-owner ZSET of record ids scored by creation time
//
// Postgres uses a single credentials table; see [Schema].
//
// # Architecture boundaries
//
// This package owns persistence and index maintenance only. Secret
// generation and hashing live in package secret; acceptance policy, scope
// checks, and observability live in the root package.
//
// # What this package must NOT do
//
//   - Compare secrets with anything but constant-time equality, and only on
//     the legacy path — fingerprinted proof of possession is the Engine's job.
//   - Log or return raw secret material beyond what a Record already carries.
//   - Reach into package-global clocks: every validity decision takes the
//     caller's now.
package credential
