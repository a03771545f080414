package goCredential

import (
	"context"

	"github.com/MrEthical07/goCredential/credential"
	"github.com/google/uuid"
)

// Rotate describes the rotate operation and its observable behavior.
//
// Rotate may return an error when input validation, dependency calls, or security checks fail.
// Rotate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Rotate verifies the presented secret with the full verification machine,
// legacy migration included, then issues a replacement preserving kind,
// owner, metadata, and the original expiry window before revoking the
// predecessor. The predecessor stays valid if replacement persistence fails.
func (e *Engine) Rotate(ctx context.Context, raw string) (*IssueResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	old, err := e.verifyInternal(ctx, raw)
	if err != nil {
		e.metricInc(MetricRotateFailure)
		return nil, err
	}

	newRaw, err := e.codec.Generate()
	if err != nil {
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventCredentialRotated, false, old.OwnerID, old.ID, old.Kind, err, func() map[string]string {
			return map[string]string{"reason": "secret_generation_failed"}
		})
		return nil, err
	}

	hash, err := e.codec.Hash(newRaw)
	if err != nil {
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventCredentialRotated, false, old.OwnerID, old.ID, old.Kind, err, func() map[string]string {
			return map[string]string{"reason": "secret_hash_failed"}
		})
		return nil, err
	}

	now := e.now()
	rec := &credential.Record{
		ID:          uuid.NewString(),
		Kind:        old.Kind,
		Format:      credential.FormatFingerprinted,
		OwnerID:     old.OwnerID,
		SecretHash:  hash,
		Fingerprint: e.codec.Fingerprint(newRaw),
		Device:      old.Device,
		RemoteAddr:  old.RemoteAddr,
		Label:       old.Label,
		Scopes:      append([]string(nil), old.Scopes...),
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
	}
	if old.ExpiresAt > 0 {
		rec.ExpiresAt = now.Unix() + (old.ExpiresAt - old.CreatedAt)
	}

	// The replacement is created uncapped; revoking the predecessor brings
	// the owner back under any active limit.
	if _, err := e.store.Create(ctx, rec, 0); err != nil {
		e.metricInc(MetricRotateFailure)
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialRotated, false, old.OwnerID, old.ID, old.Kind, err, func() map[string]string {
			return map[string]string{"reason": "store_create_failed"}
		})
		return nil, err
	}

	if _, err := e.store.MarkRevoked(ctx, now, old.ID); err != nil {
		e.metricInc(MetricRotateFailure)
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialRotated, false, old.OwnerID, old.ID, old.Kind, err, func() map[string]string {
			return map[string]string{
				"reason":      "predecessor_revoke_failed",
				"replacement": rec.ID,
			}
		})
		return nil, err
	}

	e.metricInc(MetricRotateSuccess)
	e.emitAudit(ctx, auditEventCredentialRotated, true, rec.OwnerID, rec.ID, rec.Kind, nil, func() map[string]string {
		return map[string]string{"predecessor": old.ID}
	})

	return &IssueResult{
		Credential: infoFromRecord(rec),
		Secret:     newRaw,
	}, nil
}
