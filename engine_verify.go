package goCredential

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goCredential/credential"
)

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Rejection is uniform: wrong, unknown, expired, and revoked secrets all
// surface as ErrCredentialRejected. The distinction exists only in audit
// events and metrics.
func (e *Engine) Verify(ctx context.Context, raw string) (*CredentialInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}()
	}

	rec, err := e.verifyInternal(ctx, raw)
	if err != nil {
		return nil, err
	}

	info := infoFromRecord(rec)
	return &info, nil
}

// verifyInternal runs the verification state machine and returns the stored
// record backing an accepted secret. Rotation reuses it to locate the
// predecessor. Callers must have checked e.ready().
func (e *Engine) verifyInternal(ctx context.Context, raw string) (*credential.Record, error) {
	if len(raw) > e.codec.MaxRawBytes() {
		e.metricInc(MetricVerifyRejected)
		e.emitAudit(ctx, auditEventCredentialRejected, false, "", "", 0, ErrSecretTooLong, func() map[string]string {
			return map[string]string{"reason": "secret_too_long"}
		})
		return nil, ErrSecretTooLong
	}

	now := e.now()
	fp := e.codec.Fingerprint(raw)

	rec, err := e.store.FindByFingerprint(ctx, now, fp)
	if err != nil {
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialRejected, false, "", "", 0, err, func() map[string]string {
			return map[string]string{"reason": "store_lookup_failed"}
		})
		return nil, err
	}

	if rec != nil {
		// A fingerprint hit is authoritative: a hash mismatch here means a
		// different secret with a colliding lookup digest, never a legacy
		// record, so the legacy path is not consulted.
		ok, verr := e.codec.Verify(raw, rec.SecretHash)
		if verr != nil || !ok {
			reason := "hash_mismatch"
			if verr != nil {
				reason = "stored_hash_unreadable"
			}
			e.metricInc(MetricVerifyRejected)
			e.emitAudit(ctx, auditEventCredentialRejected, false, rec.OwnerID, rec.ID, rec.Kind, ErrCredentialRejected, func() map[string]string {
				return map[string]string{"reason": reason}
			})
			return nil, ErrCredentialRejected
		}

		e.metricInc(MetricVerifyAccepted)
		e.emitAudit(ctx, auditEventCredentialVerified, true, rec.OwnerID, rec.ID, rec.Kind, nil, func() map[string]string {
			m := map[string]string{"path": "fingerprint"}
			if stale, err := e.codec.NeedsRehash(rec.SecretHash); err == nil && stale {
				m["needs_rehash"] = "true"
			}
			return m
		})
		return rec, nil
	}

	if !e.config.Verify.EnableLegacyMigration {
		e.metricInc(MetricVerifyRejected)
		e.emitAudit(ctx, auditEventCredentialRejected, false, "", "", 0, ErrCredentialRejected, func() map[string]string {
			return map[string]string{"reason": "unknown_credential"}
		})
		return nil, ErrCredentialRejected
	}

	return e.verifyLegacy(ctx, now, raw, fp)
}

// verifyLegacy resolves a pre-fingerprint record by its raw-comparable value
// and upgrades it in place. The upgrade happens at most once per record; a
// lost CAS surfaces as a uniform rejection and the next verification retries.
func (e *Engine) verifyLegacy(ctx context.Context, now time.Time, raw string, fp [32]byte) (*credential.Record, error) {
	legacy, err := e.store.FindLegacyByRaw(ctx, now, raw)
	if err != nil {
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialRejected, false, "", "", 0, err, func() map[string]string {
			return map[string]string{"reason": "store_lookup_failed"}
		})
		return nil, err
	}
	if legacy == nil {
		// A concurrent verification may have upgraded the record between our
		// fingerprint miss and this lookup. Re-check the index once before
		// rejecting.
		rec, ferr := e.store.FindByFingerprint(ctx, now, fp)
		if ferr != nil {
			e.metricInc(MetricStoreError)
			e.emitAudit(ctx, auditEventCredentialRejected, false, "", "", 0, ferr, func() map[string]string {
				return map[string]string{"reason": "store_lookup_failed"}
			})
			return nil, ferr
		}
		if rec != nil {
			if ok, verr := e.codec.Verify(raw, rec.SecretHash); verr == nil && ok {
				e.metricInc(MetricVerifyAccepted)
				e.emitAudit(ctx, auditEventCredentialVerified, true, rec.OwnerID, rec.ID, rec.Kind, nil, func() map[string]string {
					return map[string]string{"path": "fingerprint"}
				})
				return rec, nil
			}
		}

		e.metricInc(MetricVerifyRejected)
		e.emitAudit(ctx, auditEventCredentialRejected, false, "", "", 0, ErrCredentialRejected, func() map[string]string {
			return map[string]string{"reason": "unknown_credential"}
		})
		return nil, ErrCredentialRejected
	}

	hash, err := e.codec.Hash(raw)
	if err != nil {
		e.metricInc(MetricVerifyRejected)
		e.emitAudit(ctx, auditEventCredentialRejected, false, legacy.OwnerID, legacy.ID, legacy.Kind, err, func() map[string]string {
			return map[string]string{"reason": "secret_hash_failed"}
		})
		return nil, err
	}

	migrated, err := e.store.MarkMigrated(ctx, now, legacy.ID, fp, hash)
	if err != nil {
		if errors.Is(err, ErrMigrationConflict) {
			e.metricInc(MetricMigrationConflict)
			e.emitAudit(ctx, auditEventMigrationConflict, false, legacy.OwnerID, legacy.ID, legacy.Kind, err, nil)

			e.metricInc(MetricVerifyRejected)
			e.emitAudit(ctx, auditEventCredentialRejected, false, legacy.OwnerID, legacy.ID, legacy.Kind, ErrCredentialRejected, func() map[string]string {
				return map[string]string{"reason": "migration_conflict"}
			})
			return nil, ErrCredentialRejected
		}

		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialRejected, false, legacy.OwnerID, legacy.ID, legacy.Kind, err, func() map[string]string {
			return map[string]string{"reason": "store_migrate_failed"}
		})
		return nil, err
	}

	// A lost same-fingerprint race returns the winner's record; re-check
	// usability since the winner may have been revoked in the meantime.
	if !migrated.Usable(now) {
		e.metricInc(MetricVerifyRejected)
		e.emitAudit(ctx, auditEventCredentialRejected, false, migrated.OwnerID, migrated.ID, migrated.Kind, ErrCredentialRejected, func() map[string]string {
			return map[string]string{"reason": "migrated_record_unusable"}
		})
		return nil, ErrCredentialRejected
	}

	e.metricInc(MetricLegacyMigrated)
	e.emitAudit(ctx, auditEventCredentialMigrated, true, migrated.OwnerID, migrated.ID, migrated.Kind, nil, nil)

	e.metricInc(MetricVerifyAccepted)
	e.emitAudit(ctx, auditEventCredentialVerified, true, migrated.OwnerID, migrated.ID, migrated.Kind, nil, func() map[string]string {
		return map[string]string{"path": "legacy_migration"}
	})
	return migrated, nil
}
