package goCredential

import (
	"context"
	"encoding/hex"
	"strconv"
)

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Revoke is idempotent. It returns true only when this call performed the
// transition; a missing or already-revoked credential returns (false, nil).
func (e *Engine) Revoke(ctx context.Context, id string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	if id == "" {
		return false, nil
	}

	ok, err := e.store.MarkRevoked(ctx, e.now(), id)
	if err != nil {
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialRevoked, false, "", id, 0, err, func() map[string]string {
			return map[string]string{"reason": "store_revoke_failed"}
		})
		return false, err
	}
	if !ok {
		return false, nil
	}

	e.metricInc(MetricRevoke)
	e.emitAudit(ctx, auditEventCredentialRevoked, true, "", id, 0, nil, nil)
	return true, nil
}

// RevokeAll describes the revokeall operation and its observable behavior.
//
// RevokeAll may return an error when input validation, dependency calls, or security checks fail.
// RevokeAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if ownerID == "" {
		e.emitAudit(ctx, auditEventCredentialRevokedAll, false, "", "", 0, ErrOwnerIDRequired, func() map[string]string {
			return map[string]string{"reason": "owner_required"}
		})
		return 0, ErrOwnerIDRequired
	}

	n, err := e.store.RevokeAllForOwner(ctx, e.now(), ownerID)
	if err != nil {
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialRevokedAll, false, ownerID, "", 0, err, func() map[string]string {
			return map[string]string{"reason": "store_revoke_failed"}
		})
		return 0, err
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventCredentialRevokedAll, true, ownerID, "", 0, nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return n, nil
}

// RevokeAllExcept describes the revokeallexcept operation and its observable behavior.
//
// RevokeAllExcept may return an error when input validation, dependency calls, or security checks fail.
// RevokeAllExcept does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The credential to keep is identified by its fingerprint hex as carried in
// [CredentialInfo.Fingerprint], never by a raw secret. Legacy records have no
// fingerprint and are always revoked by this call.
func (e *Engine) RevokeAllExcept(ctx context.Context, ownerID, keepFingerprint string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if ownerID == "" {
		e.emitAudit(ctx, auditEventCredentialRevokedAllExcept, false, "", "", 0, ErrOwnerIDRequired, func() map[string]string {
			return map[string]string{"reason": "owner_required"}
		})
		return 0, ErrOwnerIDRequired
	}

	keep, err := parseFingerprintHex(keepFingerprint)
	if err != nil {
		e.emitAudit(ctx, auditEventCredentialRevokedAllExcept, false, ownerID, "", 0, err, func() map[string]string {
			return map[string]string{"reason": "invalid_fingerprint"}
		})
		return 0, err
	}

	n, err := e.store.RevokeAllExceptFingerprint(ctx, e.now(), ownerID, keep)
	if err != nil {
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialRevokedAllExcept, false, ownerID, "", 0, err, func() map[string]string {
			return map[string]string{"reason": "store_revoke_failed"}
		})
		return 0, err
	}

	e.metricInc(MetricRevokeAllExcept)
	e.emitAudit(ctx, auditEventCredentialRevokedAllExcept, true, ownerID, "", 0, nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.Itoa(n),
			"kept":    keepFingerprint,
		}
	})
	return n, nil
}

func parseFingerprintHex(s string) ([32]byte, error) {
	var fp [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(fp) {
		return fp, ErrInvalidFingerprint
	}
	copy(fp[:], raw)
	return fp, nil
}
