package credential

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the credentials table and its indexes. Callers owning their
// migrations can run it through InitSchema or fold it into their own tooling.
//
// The fingerprint index is unique as a hardening measure; the verifier never
// relies on it and still hash-compares every hit.
const Schema = `
CREATE TABLE IF NOT EXISTS credentials (
    id          text PRIMARY KEY,
    kind        smallint NOT NULL,
    format      smallint NOT NULL,
    owner_id    text NOT NULL DEFAULT '',
    secret_hash text NOT NULL,
    fingerprint bytea,
    device      text NOT NULL DEFAULT '',
    remote_addr text NOT NULL DEFAULT '',
    label       text NOT NULL DEFAULT '',
    scopes      text[] NOT NULL DEFAULT '{}',
    created_at  bigint NOT NULL,
    updated_at  bigint NOT NULL,
    expires_at  bigint NOT NULL DEFAULT 0,
    revoked_at  bigint
);

CREATE UNIQUE INDEX IF NOT EXISTS credentials_fingerprint_idx
    ON credentials (fingerprint) WHERE fingerprint IS NOT NULL;

CREATE INDEX IF NOT EXISTS credentials_owner_active_idx
    ON credentials (owner_id, created_at) WHERE revoked_at IS NULL;

CREATE INDEX IF NOT EXISTS credentials_legacy_hash_idx
    ON credentials (secret_hash) WHERE format = 1;
`

const recordColumns = `id, kind, format, owner_id, secret_hash, fingerprint, device, remote_addr, label, scopes, created_at, updated_at, expires_at, revoked_at`

// activeWhere filters to usable rows. $n binds the caller's now.
func activeWhere(n int) string {
	return fmt.Sprintf("revoked_at IS NULL AND (expires_at = 0 OR expires_at > $%d)", n)
}

// PostgresStore is a Postgres-backed credential store. Every mutation is a
// single statement so concurrent writers never observe half-applied state;
// the owner cap is enforced inside the insert via a CTE over the rows visible
// at statement start, which by construction never evicts the row being
// inserted.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a credential [Store] backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema applies Schema. Safe to call repeatedly.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Create inserts a fingerprinted record and, when maxActive > 0, revokes the
// owner's oldest pre-existing active rows so the cap holds including the new
// row.
func (s *PostgresStore) Create(ctx context.Context, rec *Record, maxActive int) (int, error) {
	if rec.Format != FormatFingerprinted {
		return 0, errors.New("create requires a fingerprinted record")
	}

	args := []any{
		rec.ID, int16(rec.Kind), int16(rec.Format), rec.OwnerID, rec.SecretHash,
		rec.Fingerprint[:], rec.Device, rec.RemoteAddr, rec.Label, scopesArg(rec.Scopes),
		rec.CreatedAt, rec.UpdatedAt, rec.ExpiresAt,
	}

	if maxActive <= 0 {
		_, err := s.pool.Exec(ctx, `
INSERT INTO credentials (`+recordColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL)`,
			args...)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return 0, nil
	}

	// $14 = now, $15 = how many existing active rows the owner may keep.
	args = append(args, rec.CreatedAt, maxActive-1)
	row := s.pool.QueryRow(ctx, `
WITH ins AS (
    INSERT INTO credentials (`+recordColumns+`)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL)
), victims AS (
    SELECT id FROM credentials
    WHERE owner_id = $4 AND `+activeWhere(14)+`
    ORDER BY created_at DESC, id DESC
    OFFSET $15
), evicted AS (
    UPDATE credentials c
    SET revoked_at = $14, updated_at = $14
    FROM victims v
    WHERE c.id = v.id
    RETURNING c.id
)
SELECT count(*) FROM evicted`,
		args...)

	var evicted int
	if err := row.Scan(&evicted); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return evicted, nil
}

// FindByFingerprint loads the usable record carrying fp.
func (s *PostgresStore) FindByFingerprint(ctx context.Context, now time.Time, fp [32]byte) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+recordColumns+` FROM credentials
WHERE fingerprint = $1 AND `+activeWhere(2),
		fp[:], now.Unix())

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// FindLegacyByRaw loads a usable legacy record whose stored value equals raw.
// The SQL equality narrows the candidate set; the returned value is still
// compared in constant time before being trusted.
func (s *PostgresStore) FindLegacyByRaw(ctx context.Context, now time.Time, raw string) (*Record, error) {
	if raw == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx, `
SELECT `+recordColumns+` FROM credentials
WHERE format = $1 AND secret_hash = $2 AND `+activeWhere(3),
		int16(FormatLegacy), raw, now.Unix())

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.SecretHash), []byte(raw)) != 1 {
		return nil, nil
	}
	return rec, nil
}

// MarkMigrated upgrades a legacy row in place. The format predicate makes the
// update a compare-and-set: zero rows means someone else got there first, and
// the follow-up read decides between idempotent success and conflict.
func (s *PostgresStore) MarkMigrated(ctx context.Context, now time.Time, id string, fp [32]byte, hash string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE credentials
SET format = $2, secret_hash = $3, fingerprint = $4, updated_at = $5
WHERE id = $1 AND format = $6
RETURNING `+recordColumns,
		id, int16(FormatFingerprinted), hash, fp[:], now.Unix(), int16(FormatLegacy))

	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	current, err := s.getByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMigrationConflict
		}
		return nil, err
	}
	if current.Format == FormatFingerprinted && current.Fingerprint == fp {
		return current, nil
	}
	return nil, ErrMigrationConflict
}

// MarkRevoked sets revoked_at once. Zero rows affected means the record was
// absent or already revoked.
func (s *PostgresStore) MarkRevoked(ctx context.Context, now time.Time, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE credentials SET revoked_at = $2, updated_at = $2
WHERE id = $1 AND revoked_at IS NULL`,
		id, now.Unix())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeAllForOwner revokes every active row of an owner.
func (s *PostgresStore) RevokeAllForOwner(ctx context.Context, now time.Time, ownerID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE credentials SET revoked_at = $2, updated_at = $2
WHERE owner_id = $1 AND `+activeWhere(2),
		ownerID, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// RevokeAllExceptFingerprint revokes every active row of an owner except the
// one carrying keep. IS DISTINCT FROM keeps NULL-fingerprint legacy rows in
// the revoked set.
func (s *PostgresStore) RevokeAllExceptFingerprint(ctx context.Context, now time.Time, ownerID string, keep [32]byte) (int, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE credentials SET revoked_at = $2, updated_at = $2
WHERE owner_id = $1 AND fingerprint IS DISTINCT FROM $3 AND `+activeWhere(2),
		ownerID, now.Unix(), keep[:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// EnforceActiveLimit revokes the owner's oldest active rows beyond maxActive.
func (s *PostgresStore) EnforceActiveLimit(ctx context.Context, now time.Time, ownerID string, maxActive int) (int, error) {
	if maxActive <= 0 {
		return 0, nil
	}
	row := s.pool.QueryRow(ctx, `
WITH victims AS (
    SELECT id FROM credentials
    WHERE owner_id = $1 AND `+activeWhere(2)+`
    ORDER BY created_at DESC, id DESC
    OFFSET $3
), evicted AS (
    UPDATE credentials c
    SET revoked_at = $2, updated_at = $2
    FROM victims v
    WHERE c.id = v.id
    RETURNING c.id
)
SELECT count(*) FROM evicted`,
		ownerID, now.Unix(), maxActive)

	var evicted int
	if err := row.Scan(&evicted); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return evicted, nil
}

// ListActiveForOwner returns the owner's active rows oldest first.
func (s *PostgresStore) ListActiveForOwner(ctx context.Context, now time.Time, ownerID string) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+recordColumns+` FROM credentials
WHERE owner_id = $1 AND `+activeWhere(2)+`
ORDER BY created_at ASC, id ASC`,
		ownerID, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// CountActiveForOwner returns the number of active rows for an owner.
func (s *PostgresStore) CountActiveForOwner(ctx context.Context, now time.Time, ownerID string) (int, error) {
	row := s.pool.QueryRow(ctx, `
SELECT count(*) FROM credentials
WHERE owner_id = $1 AND `+activeWhere(2),
		ownerID, now.Unix())

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// Ping verifies database connectivity and reports the probe round-trip time.
func (s *PostgresStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *PostgresStore) getByID(ctx context.Context, id string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+recordColumns+` FROM credentials WHERE id = $1`, id)
	return scanRecord(row)
}

// scopesArg keeps empty scope slices as empty arrays rather than NULL.
func scopesArg(scopes []string) []string {
	if scopes == nil {
		return []string{}
	}
	return scopes
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec         Record
		kind        int16
		format      int16
		fingerprint []byte
		scopes      []string
		revokedAt   *int64
	)
	err := row.Scan(
		&rec.ID, &kind, &format, &rec.OwnerID, &rec.SecretHash,
		&fingerprint, &rec.Device, &rec.RemoteAddr, &rec.Label, &scopes,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt, &revokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec.Kind = Kind(kind)
	rec.Format = Format(format)
	if len(fingerprint) == len(rec.Fingerprint) {
		copy(rec.Fingerprint[:], fingerprint)
	} else if len(fingerprint) != 0 {
		return nil, ErrCorruptRecord
	}
	if len(scopes) > 0 {
		rec.Scopes = scopes
	}
	rec.Revoked = revokedAt != nil
	return &rec, nil
}
