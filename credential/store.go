package credential

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is an exported constant or variable used by the credential engine.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// ErrMigrationConflict is returned when a legacy record was upgraded
// concurrently with a different fingerprint, or the upgrade CAS could not be
// won within the retry budget.
var ErrMigrationConflict = errors.New("credential migration conflict")

// Store persists credential records and their lookup indexes. Implementations
// must treat absence as a normal outcome: lookup methods return (nil, nil)
// when no usable record matches, and reserve errors for backend failures.
//
// All time-dependent filtering takes the caller's now so the engine's clock
// is the single time source.
type Store interface {
	// Create persists a record and, when maxActive > 0, atomically revokes
	// the owner's oldest active records so that at most maxActive remain
	// including the new one. Returns the number of records evicted. The
	// record's CreatedAt is taken as the current time for eviction decisions.
	Create(ctx context.Context, rec *Record, maxActive int) (int, error)

	// FindByFingerprint resolves the fingerprint index to a usable record.
	// Revoked, expired, and missing records all yield (nil, nil).
	FindByFingerprint(ctx context.Context, now time.Time, fp [32]byte) (*Record, error)

	// FindLegacyByRaw resolves the legacy index for records written before
	// fingerprinting existed. The raw value is compared against the stored
	// legacy value in constant time before the record is returned; any
	// mismatch yields (nil, nil).
	FindLegacyByRaw(ctx context.Context, now time.Time, raw string) (*Record, error)

	// MarkMigrated upgrades a legacy record in place to the fingerprinted
	// format. The write is a compare-and-set on the record's format: if the
	// record was already upgraded with the same fingerprint the stored record
	// is returned unchanged, if it was upgraded with a different fingerprint
	// ErrMigrationConflict is returned.
	MarkMigrated(ctx context.Context, now time.Time, id string, fp [32]byte, hash string) (*Record, error)

	// MarkRevoked sets the revoked flag on a record. Returns true when this
	// call performed the transition, false when the record was absent or
	// already revoked. Revocation is monotonic; there is no unrevoke.
	MarkRevoked(ctx context.Context, now time.Time, id string) (bool, error)

	// RevokeAllForOwner revokes every active record of an owner and returns
	// the number of records transitioned.
	RevokeAllForOwner(ctx context.Context, now time.Time, ownerID string) (int, error)

	// RevokeAllExceptFingerprint revokes every active record of an owner
	// except the one carrying the given fingerprint. Legacy records have no
	// fingerprint and are always revoked by this call.
	RevokeAllExceptFingerprint(ctx context.Context, now time.Time, ownerID string, keep [32]byte) (int, error)

	// EnforceActiveLimit revokes the owner's oldest active records until at
	// most maxActive remain. Returns the number evicted.
	EnforceActiveLimit(ctx context.Context, now time.Time, ownerID string, maxActive int) (int, error)

	// ListActiveForOwner returns the owner's active records ordered oldest
	// first. The returned records never include secret material consumers
	// should see; callers map them to views before exposure.
	ListActiveForOwner(ctx context.Context, now time.Time, ownerID string) ([]*Record, error)

	// CountActiveForOwner returns the number of active records for an owner.
	CountActiveForOwner(ctx context.Context, now time.Time, ownerID string) (int, error)

	// Ping verifies backend connectivity and reports the probe round-trip time.
	Ping(ctx context.Context) (time.Duration, error)
}
