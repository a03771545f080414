package goCredential

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goCredential/scope"
)

// ListActive describes the listactive operation and its observable behavior.
//
// ListActive may return an error when input validation, dependency calls, or security checks fail.
// ListActive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Results are ordered oldest first by creation time and never include secret
// material. Revoked and expired credentials are excluded.
func (e *Engine) ListActive(ctx context.Context, ownerID string) ([]CredentialInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if ownerID == "" {
		return nil, ErrOwnerIDRequired
	}

	recs, err := e.store.ListActiveForOwner(ctx, e.now(), ownerID)
	if err != nil {
		e.metricInc(MetricStoreError)
		return nil, err
	}

	infos := make([]CredentialInfo, 0, len(recs))
	for _, rec := range recs {
		infos = append(infos, infoFromRecord(rec))
	}
	return infos, nil
}

// CountActive describes the countactive operation and its observable behavior.
//
// CountActive may return an error when input validation, dependency calls, or security checks fail.
// CountActive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CountActive(ctx context.Context, ownerID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if ownerID == "" {
		return 0, ErrOwnerIDRequired
	}

	n, err := e.store.CountActiveForOwner(ctx, e.now(), ownerID)
	if err != nil {
		e.metricInc(MetricStoreError)
		return 0, err
	}
	return n, nil
}

// EnforceSessionLimit describes the enforcesessionlimit operation and its observable behavior.
//
// EnforceSessionLimit may return an error when input validation, dependency calls, or security checks fail.
// EnforceSessionLimit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A maxActive of zero or less means unlimited and the call is a no-op. The
// sweep evicts oldest credentials first until at most maxActive remain.
// Issues running concurrently with the sweep can leave the owner briefly
// above the cap; the next enforcement or capped Issue converges it.
func (e *Engine) EnforceSessionLimit(ctx context.Context, ownerID string, maxActive int) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if ownerID == "" {
		return 0, ErrOwnerIDRequired
	}
	if maxActive <= 0 {
		return 0, nil
	}

	evicted, err := e.store.EnforceActiveLimit(ctx, e.now(), ownerID, maxActive)
	if err != nil {
		e.metricInc(MetricStoreError)
		return 0, err
	}

	e.metricInc(MetricSessionLimitEnforced)
	if evicted > 0 {
		e.metricAdd(MetricSessionLimitEvicted, uint64(evicted))
		e.emitAudit(ctx, auditEventSessionLimitEvicted, true, ownerID, "", 0, nil, func() map[string]string {
			return map[string]string{
				"evicted":    strconv.Itoa(evicted),
				"max_active": strconv.Itoa(maxActive),
			}
		})
	}
	return evicted, nil
}

// Health describes the health operation and its observable behavior.
//
// Health does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{Err: ErrEngineNotReady}
	}

	latency, err := e.store.Ping(ctx)
	if err != nil {
		return HealthStatus{Err: err}
	}
	return HealthStatus{Healthy: true, Latency: latency}
}

// HasScope describes the hasscope operation and its observable behavior.
//
// HasScope does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Scope checks fail closed: refresh tokens, revoked credentials, and empty
// scope names never match.
func (e *Engine) HasScope(info CredentialInfo, scopeName string) bool {
	if !scopeCheckable(info) {
		return false
	}
	return scope.Has(info.Scopes, scopeName)
}

// HasAnyScope describes the hasanyscope operation and its observable behavior.
//
// HasAnyScope does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) HasAnyScope(info CredentialInfo, scopeNames ...string) bool {
	if !scopeCheckable(info) {
		return false
	}
	return scope.HasAny(info.Scopes, scopeNames)
}

// HasAllScopes describes the hasallscopes operation and its observable behavior.
//
// HasAllScopes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) HasAllScopes(info CredentialInfo, scopeNames ...string) bool {
	if !scopeCheckable(info) {
		return false
	}
	return scope.HasAll(info.Scopes, scopeNames)
}

func scopeCheckable(info CredentialInfo) bool {
	return info.Kind == KindAPIKey && !info.Revoked
}
