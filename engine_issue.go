package goCredential

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goCredential/credential"
	"github.com/MrEthical07/goCredential/scope"
	"github.com/google/uuid"
)

// Issue describes the issue operation and its observable behavior.
//
// Issue may return an error when input validation, dependency calls, or security checks fail.
// Issue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned IssueResult carries the raw secret exactly once; the engine
// persists only its fingerprint and slow hash.
func (e *Engine) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	if !req.Kind.Valid() {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventCredentialIssued, false, req.OwnerID, "", req.Kind, ErrInvalidKind, func() map[string]string {
			return map[string]string{"reason": "invalid_kind"}
		})
		return nil, ErrInvalidKind
	}

	if req.Kind == credential.KindRefreshToken && req.OwnerID == "" {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventCredentialIssued, false, "", "", req.Kind, ErrOwnerIDRequired, func() map[string]string {
			return map[string]string{"reason": "owner_required"}
		})
		return nil, ErrOwnerIDRequired
	}

	if len(req.Scopes) > 0 && req.Kind != credential.KindAPIKey {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventCredentialIssued, false, req.OwnerID, "", req.Kind, ErrScopesNotAllowed, func() map[string]string {
			return map[string]string{"reason": "scopes_on_refresh_token"}
		})
		return nil, ErrScopesNotAllowed
	}

	ttl := req.TTL
	if ttl == 0 {
		switch req.Kind {
		case credential.KindRefreshToken:
			ttl = e.config.Session.RefreshTokenTTL
		case credential.KindAPIKey:
			ttl = e.config.Session.APIKeyTTL
		}
	}

	maxActive := req.MaxActive
	if maxActive == 0 {
		maxActive = e.config.Session.MaxActivePerOwner
	}
	if maxActive < 0 {
		maxActive = 0
	}

	raw, err := e.codec.Generate()
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventCredentialIssued, false, req.OwnerID, "", req.Kind, err, func() map[string]string {
			return map[string]string{"reason": "secret_generation_failed"}
		})
		return nil, err
	}

	hash, err := e.codec.Hash(raw)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventCredentialIssued, false, req.OwnerID, "", req.Kind, err, func() map[string]string {
			return map[string]string{"reason": "secret_hash_failed"}
		})
		return nil, err
	}

	remoteAddr := req.RemoteAddr
	if remoteAddr == "" {
		remoteAddr = clientIPFromContext(ctx)
	}
	device := req.Device
	if device == "" {
		device = userAgentFromContext(ctx)
	}

	now := e.now()
	rec := &credential.Record{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		Format:      credential.FormatFingerprinted,
		OwnerID:     req.OwnerID,
		SecretHash:  hash,
		Fingerprint: e.codec.Fingerprint(raw),
		Device:      device,
		RemoteAddr:  remoteAddr,
		Label:       req.Label,
		Scopes:      scope.Normalize(req.Scopes),
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
	}
	if ttl > 0 {
		rec.ExpiresAt = now.Add(ttl).Unix()
	}

	evicted, err := e.store.Create(ctx, rec, maxActive)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventCredentialIssued, false, req.OwnerID, rec.ID, req.Kind, err, func() map[string]string {
			return map[string]string{"reason": "store_create_failed"}
		})
		return nil, err
	}

	e.metricInc(MetricIssueSuccess)
	if evicted > 0 {
		e.metricAdd(MetricSessionLimitEvicted, uint64(evicted))
		e.emitAudit(ctx, auditEventSessionLimitEvicted, true, req.OwnerID, rec.ID, req.Kind, nil, func() map[string]string {
			return map[string]string{
				"evicted":    strconv.Itoa(evicted),
				"max_active": strconv.Itoa(maxActive),
			}
		})
	}
	e.emitAudit(ctx, auditEventCredentialIssued, true, req.OwnerID, rec.ID, req.Kind, nil, func() map[string]string {
		m := map[string]string{}
		if req.Label != "" {
			m["label"] = req.Label
		}
		if rec.ExpiresAt == 0 {
			m["expires"] = "never"
		}
		return m
	})

	return &IssueResult{
		Credential: infoFromRecord(rec),
		Secret:     raw,
		Evicted:    evicted,
	}, nil
}
