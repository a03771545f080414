// Package secret implements raw-secret generation, fingerprinting, and slow
// hashing for opaque credentials.
//
// # Output formats
//
// Generated secrets are base64url-encoded random bytes (no padding). Slow hashes
// are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Fingerprints are unsalted SHA-256 digests of the raw secret. A fingerprint is
// a lookup key, never a proof of possession: possession is only established by
// [Codec.Verify] against the argon2id hash.
//
// The [Codec] supports transparent parameter upgrades: if a stored hash was
// produced with weaker parameters, [Codec.NeedsRehash] returns true so the
// caller can re-hash on the credential's next successful verification.
//
// # Architecture boundaries
//
// This package owns secret material transforms only. Lookup, persistence, and
// acceptance policy belong to the store and the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets — callers supply raw values and receive digests.
//   - Import any other goCredential package.
//   - Log raw secrets or hash parameters at runtime.
package secret
