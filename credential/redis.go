package credential

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokeStatusNotFound       int64 = 0
	revokeStatusAlreadyRevoked int64 = 1
	revokeStatusRevoked        int64 = 2
	revokeStatusInvalidBlob    int64 = 3
)

// maxMigrateRetries bounds the optimistic retry loop for legacy upgrades.
const maxMigrateRetries = 4

// minRecordTTL floors the TTL on expiring records so a record created at the
// edge of its window still lands in Redis long enough to be observed.
const minRecordTTL = time.Second

// luaCommon is prepended to every script that inspects record blobs. The byte
// offsets match the fixed header documented in codec.go.
const luaCommon = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function write_be64(n)
  local out = ""
  for shift = 56, 0, -8 do
    out = out .. string.char(math.floor(n / 2 ^ shift) % 256)
  end
  return out
end

local function revoke_blob(data, now)
  return string.sub(data, 1, 2) .. string.char(1) .. string.sub(data, 4, 11) .. write_be64(now) .. string.sub(data, 20)
end

local function liveness(data, now)
  if #data < 27 then
    return "corrupt"
  end
  if string.byte(data, 3) ~= 0 then
    return "revoked"
  end
  local expires = read_be64(data, 20)
  if not expires then
    return "corrupt"
  end
  if expires > 0 and expires <= now then
    return "expired"
  end
  return "live"
end
`

// createScript persists a new record plus its fingerprint index and owner
// membership, then evicts the owner's oldest active records beyond the cap.
// Dead owner-index members discovered during the scan are dropped in passing.
const createScript = luaCommon + `
local record_key = KEYS[1]
local fp_key = KEYS[2]
local owner_key = KEYS[3]
local blob = ARGV[1]
local id = ARGV[2]
local score = tonumber(ARGV[3])
local px = tonumber(ARGV[4])
local max_active = tonumber(ARGV[5])
local now = tonumber(ARGV[6])
local record_prefix = ARGV[7]

local active = {}
if max_active > 0 then
  local ids = redis.call("ZRANGE", owner_key, 0, -1)
  for _, sid in ipairs(ids) do
    local data = redis.call("GET", record_prefix .. sid)
    if not data then
      redis.call("ZREM", owner_key, sid)
    elseif liveness(data, now) == "live" then
      active[#active + 1] = sid
    else
      redis.call("ZREM", owner_key, sid)
    end
  end
end

if px > 0 then
  redis.call("SET", record_key, blob, "PX", px)
  redis.call("SET", fp_key, id, "PX", px)
else
  redis.call("SET", record_key, blob)
  redis.call("SET", fp_key, id)
end
redis.call("ZADD", owner_key, score, id)

local evicted = 0
if max_active > 0 then
  local over = #active + 1 - max_active
  local i = 1
  while over > 0 and i <= #active do
    local sid = active[i]
    local vkey = record_prefix .. sid
    local data = redis.call("GET", vkey)
    if data then
      local ttl = redis.call("PTTL", vkey)
      local updated = revoke_blob(data, now)
      if ttl > 0 then
        redis.call("SET", vkey, updated, "PX", ttl)
      else
        redis.call("SET", vkey, updated)
      end
    end
    redis.call("ZREM", owner_key, sid)
    evicted = evicted + 1
    over = over - 1
    i = i + 1
  end
end

return evicted
`

var createLua = redis.NewScript(createScript)

// revokeScript flips the revoked flag in place and removes the record from
// its owner index. The owner is parsed out of the blob because the caller
// only knows the record id.
const revokeScript = luaCommon + `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
if #data < 27 then
  return {3}
end
if string.byte(data, 3) ~= 0 then
  return {1}
end

local version = string.byte(data, 1)
local idx
if version == 2 then
  if #data < 61 then
    return {3}
  end
  idx = 62 + string.byte(data, 60) * 256 + string.byte(data, 61)
elseif version == 1 then
  if #data < 29 then
    return {3}
  end
  idx = 30 + string.byte(data, 28) * 256 + string.byte(data, 29)
else
  return {3}
end

local owner_len = string.byte(data, idx)
if not owner_len then
  return {3}
end
local owner = string.sub(data, idx + 1, idx + owner_len)
if owner == "" then
  owner = "-"
end

local now = tonumber(ARGV[2])
local updated = revoke_blob(data, now)
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], updated, "PX", ttl)
else
  redis.call("SET", KEYS[1], updated)
end
redis.call("ZREM", ARGV[3] .. owner, ARGV[1])
return {2}
`

var revokeLua = redis.NewScript(revokeScript)

// revokeAllScript revokes every live record in an owner index, optionally
// sparing the one whose fingerprint equals ARGV[3]. Legacy records carry no
// fingerprint and are never spared.
const revokeAllScript = luaCommon + `
local owner_key = KEYS[1]
local now = tonumber(ARGV[1])
local record_prefix = ARGV[2]
local keep = ARGV[3]

local ids = redis.call("ZRANGE", owner_key, 0, -1)
local revoked = 0
for _, sid in ipairs(ids) do
  local rkey = record_prefix .. sid
  local data = redis.call("GET", rkey)
  local spared = false
  if data and liveness(data, now) == "live" then
    if keep ~= "" and string.byte(data, 1) == 2 and #data >= 59 and string.sub(data, 28, 59) == keep then
      spared = true
    else
      local ttl = redis.call("PTTL", rkey)
      local updated = revoke_blob(data, now)
      if ttl > 0 then
        redis.call("SET", rkey, updated, "PX", ttl)
      else
        redis.call("SET", rkey, updated)
      end
      revoked = revoked + 1
    end
  end
  if not spared then
    redis.call("ZREM", owner_key, sid)
  end
end
return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// enforceScript revokes the oldest live records in an owner index until at
// most max_active remain.
const enforceScript = luaCommon + `
local owner_key = KEYS[1]
local now = tonumber(ARGV[1])
local record_prefix = ARGV[2]
local max_active = tonumber(ARGV[3])

local ids = redis.call("ZRANGE", owner_key, 0, -1)
local active = {}
for _, sid in ipairs(ids) do
  local data = redis.call("GET", record_prefix .. sid)
  if not data then
    redis.call("ZREM", owner_key, sid)
  elseif liveness(data, now) == "live" then
    active[#active + 1] = sid
  else
    redis.call("ZREM", owner_key, sid)
  end
end

local evicted = 0
local over = #active - max_active
local i = 1
while over > 0 and i <= #active do
  local sid = active[i]
  local vkey = record_prefix .. sid
  local data = redis.call("GET", vkey)
  if data then
    local ttl = redis.call("PTTL", vkey)
    local updated = revoke_blob(data, now)
    if ttl > 0 then
      redis.call("SET", vkey, updated, "PX", ttl)
    else
      redis.call("SET", vkey, updated)
    end
  end
  redis.call("ZREM", owner_key, sid)
  evicted = evicted + 1
  over = over - 1
  i = i + 1
end
return evicted
`

var enforceLua = redis.NewScript(enforceScript)

// RedisStore is a Redis-backed credential store. Records live as binary blobs
// under <prefix>:cr:<id>, the fingerprint index under <prefix>:cf:<hex>, the
// legacy raw index under <prefix>:cl:<raw>, and a per-owner ZSET scored by
// creation time under <prefix>:co:<owner>.
//
// Expiring records get a TTL of their remaining lifetime plus the retention
// window, so expired records stay readable as tombstones for a grace period
// and then vanish without a sweeper.
type RedisStore struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a credential [Store] backed by the given Redis
// client. prefix sets the Redis key namespace; retention controls how long
// expired records remain readable before their keys are reaped.
func NewRedisStore(rdb redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gc"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{
		rdb:       rdb,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + ":cr:" + id
}

func (s *RedisStore) recordKeyPrefix() string {
	return s.prefix + ":cr:"
}

func (s *RedisStore) fingerprintKey(fp [32]byte) string {
	return s.prefix + ":cf:" + hex.EncodeToString(fp[:])
}

func (s *RedisStore) legacyKey(raw string) string {
	return s.prefix + ":cl:" + raw
}

func (s *RedisStore) ownerKey(ownerID string) string {
	return s.prefix + ":co:" + normalizeOwnerID(ownerID)
}

func (s *RedisStore) ownerKeyPrefix() string {
	return s.prefix + ":co:"
}

func normalizeOwnerID(ownerID string) string {
	if ownerID == "" {
		return "-"
	}
	return ownerID
}

func (s *RedisStore) ttlFor(rec *Record, now time.Time) time.Duration {
	if rec.ExpiresAt == 0 {
		return 0
	}
	remaining := time.Unix(rec.ExpiresAt, 0).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	ttl := remaining + s.retention
	if ttl < minRecordTTL {
		ttl = minRecordTTL
	}
	return ttl
}

// Create persists a fingerprinted record, indexes it, and enforces the owner
// cap in one script call.
//
//	Performance: 1 Redis round trip; the script scans the owner index when maxActive > 0.
func (s *RedisStore) Create(ctx context.Context, rec *Record, maxActive int) (int, error) {
	if rec.Format != FormatFingerprinted {
		return 0, errors.New("create requires a fingerprinted record")
	}
	blob, err := Encode(rec)
	if err != nil {
		return 0, err
	}

	now := time.Unix(rec.CreatedAt, 0)
	res, err := createLua.Run(ctx, s.rdb,
		[]string{s.recordKey(rec.ID), s.fingerprintKey(rec.Fingerprint), s.ownerKey(rec.OwnerID)},
		blob, rec.ID, rec.CreatedAt, s.ttlFor(rec, now).Milliseconds(), maxActive, rec.CreatedAt, s.recordKeyPrefix(),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	evicted, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected create reply %T", ErrStoreUnavailable, res)
	}
	return int(evicted), nil
}

// FindByFingerprint resolves the fingerprint index and loads the record.
//
//	Performance: 2 Redis GETs.
func (s *RedisStore) FindByFingerprint(ctx context.Context, now time.Time, fp [32]byte) (*Record, error) {
	fpKey := s.fingerprintKey(fp)
	id, err := s.rdb.Get(ctx, fpKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	data, err := s.rdb.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The blob was reaped before its index entry; drop the dangling pointer.
			_ = s.rdb.Del(ctx, fpKey).Err()
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	if !rec.Usable(now) {
		return nil, nil
	}
	return rec, nil
}

// FindLegacyByRaw resolves the legacy raw index and loads the record. The
// presented value is compared against the stored legacy value in constant
// time; the index hit alone is never trusted.
func (s *RedisStore) FindLegacyByRaw(ctx context.Context, now time.Time, raw string) (*Record, error) {
	if raw == "" {
		return nil, nil
	}
	legacyKey := s.legacyKey(raw)
	id, err := s.rdb.Get(ctx, legacyKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	data, err := s.rdb.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			_ = s.rdb.Del(ctx, legacyKey).Err()
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	if rec.Format != FormatLegacy {
		// Already upgraded; the index entry should have gone with the upgrade.
		_ = s.rdb.Del(ctx, legacyKey).Err()
		return nil, nil
	}
	if !rec.Usable(now) {
		return nil, nil
	}
	if subtle.ConstantTimeCompare([]byte(rec.SecretHash), []byte(raw)) != 1 {
		return nil, nil
	}
	return rec, nil
}

// MarkMigrated upgrades a legacy record to the fingerprinted format under an
// optimistic WATCH transaction. Concurrent upgrades of the same record
// resolve to a single winner; losers that raced an identical upgrade get the
// stored record back, anything else gets ErrMigrationConflict.
func (s *RedisStore) MarkMigrated(ctx context.Context, now time.Time, id string, fp [32]byte, hash string) (*Record, error) {
	key := s.recordKey(id)

	for attempt := 0; attempt < maxMigrateRetries; attempt++ {
		var result *Record

		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrMigrationConflict
				}
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}

			rec, err := Decode(data)
			if err != nil {
				return err
			}
			rec.ID = id

			if rec.Format == FormatFingerprinted {
				if rec.Fingerprint == fp {
					result = rec
					return nil
				}
				return ErrMigrationConflict
			}

			legacyRaw := rec.SecretHash
			upgraded := rec.Clone()
			upgraded.Format = FormatFingerprinted
			upgraded.SecretHash = hash
			upgraded.Fingerprint = fp
			upgraded.UpdatedAt = now.Unix()

			blob, err := Encode(upgraded)
			if err != nil {
				return err
			}

			ttl, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			if ttl < 0 {
				ttl = 0
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, blob, ttl)
				pipe.Set(ctx, s.fingerprintKey(fp), id, ttl)
				pipe.Del(ctx, s.legacyKey(legacyRaw))
				return nil
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}

			result = upgraded
			return nil
		}, key)

		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, ErrMigrationConflict
}

// MarkRevoked flips the revoked flag on a record.
//
//	Performance: 1 Redis round trip.
func (s *RedisStore) MarkRevoked(ctx context.Context, now time.Time, id string) (bool, error) {
	res, err := revokeLua.Run(ctx, s.rdb,
		[]string{s.recordKey(id)},
		id, now.Unix(), s.ownerKeyPrefix(),
	).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) == 0 {
		return false, fmt.Errorf("%w: unexpected revoke reply %T", ErrStoreUnavailable, res)
	}
	status, _ := vals[0].(int64)

	switch status {
	case revokeStatusRevoked:
		return true, nil
	case revokeStatusNotFound, revokeStatusAlreadyRevoked:
		return false, nil
	case revokeStatusInvalidBlob:
		return false, ErrCorruptRecord
	default:
		return false, fmt.Errorf("%w: unexpected revoke status %d", ErrStoreUnavailable, status)
	}
}

// RevokeAllForOwner revokes every active record of an owner.
func (s *RedisStore) RevokeAllForOwner(ctx context.Context, now time.Time, ownerID string) (int, error) {
	return s.revokeAll(ctx, now, ownerID, "")
}

// RevokeAllExceptFingerprint revokes every active record of an owner except
// the one carrying keep.
func (s *RedisStore) RevokeAllExceptFingerprint(ctx context.Context, now time.Time, ownerID string, keep [32]byte) (int, error) {
	return s.revokeAll(ctx, now, ownerID, string(keep[:]))
}

func (s *RedisStore) revokeAll(ctx context.Context, now time.Time, ownerID, keep string) (int, error) {
	res, err := revokeAllLua.Run(ctx, s.rdb,
		[]string{s.ownerKey(ownerID)},
		now.Unix(), s.recordKeyPrefix(), keep,
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	revoked, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected revoke-all reply %T", ErrStoreUnavailable, res)
	}
	return int(revoked), nil
}

// EnforceActiveLimit revokes the owner's oldest active records until at most
// maxActive remain. Non-positive limits are a no-op.
func (s *RedisStore) EnforceActiveLimit(ctx context.Context, now time.Time, ownerID string, maxActive int) (int, error) {
	if maxActive <= 0 {
		return 0, nil
	}
	res, err := enforceLua.Run(ctx, s.rdb,
		[]string{s.ownerKey(ownerID)},
		now.Unix(), s.recordKeyPrefix(), maxActive,
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	evicted, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected enforce reply %T", ErrStoreUnavailable, res)
	}
	return int(evicted), nil
}

// ListActiveForOwner fetches the owner's active records oldest first without
// mutating Redis state. Members whose blobs are gone or unreadable are
// skipped; the mutating paths clean those up.
//
//	Performance: 1 ZRANGE + pipelined GETs.
func (s *RedisStore) ListActiveForOwner(ctx context.Context, now time.Time, ownerID string) ([]*Record, error) {
	ids, err := s.rdb.ZRange(ctx, s.ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.recordKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]*Record, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		rec, err := Decode(data)
		if err != nil {
			continue
		}
		rec.ID = ids[i]
		if rec.Usable(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// CountActiveForOwner returns the number of active records for an owner.
func (s *RedisStore) CountActiveForOwner(ctx context.Context, now time.Time, ownerID string) (int, error) {
	recs, err := s.ListActiveForOwner(ctx, now, ownerID)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Ping verifies Redis connectivity and reports the probe round-trip time.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
