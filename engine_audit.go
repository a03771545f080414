package goCredential

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventCredentialIssued           = "credential_issued"
	auditEventCredentialVerified         = "credential_verified"
	auditEventCredentialRejected         = "credential_rejected"
	auditEventCredentialRotated          = "credential_rotated"
	auditEventCredentialRevoked          = "credential_revoked"
	auditEventCredentialRevokedAll       = "credential_revoked_all"
	auditEventCredentialRevokedAllExcept = "credential_revoked_all_except"
	auditEventCredentialMigrated         = "credential_migrated"
	auditEventMigrationConflict          = "migration_conflict"
	auditEventSessionLimitEvicted        = "session_limit_evicted"
)

// AuditErrorCode defines a public type used by goCredential APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrRejected           AuditErrorCode = "credential_rejected"
	auditErrMigrationConflict  AuditErrorCode = "migration_conflict"
	auditErrOwnerRequired      AuditErrorCode = "owner_required"
	auditErrInvalidKind        AuditErrorCode = "invalid_kind"
	auditErrSecretTooLong      AuditErrorCode = "secret_too_long"
	auditErrScopesNotAllowed   AuditErrorCode = "scopes_not_allowed"
	auditErrInvalidFingerprint AuditErrorCode = "invalid_fingerprint"
	auditErrNotReady           AuditErrorCode = "engine_not_ready"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	ownerID string,
	credentialID string,
	kind Kind,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		OwnerID:      ownerID,
		CredentialID: credentialID,
		IP:           clientIPFromContext(ctx),
		UserAgent:    userAgentFromContext(ctx),
		Success:      success,
		Metadata:     metadata,
	}
	if kind.Valid() {
		event.Kind = kind.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrCredentialRejected):
		return auditErrRejected
	case errors.Is(err, ErrMigrationConflict):
		return auditErrMigrationConflict
	case errors.Is(err, ErrOwnerIDRequired):
		return auditErrOwnerRequired
	case errors.Is(err, ErrInvalidKind):
		return auditErrInvalidKind
	case errors.Is(err, ErrSecretTooLong):
		return auditErrSecretTooLong
	case errors.Is(err, ErrScopesNotAllowed):
		return auditErrScopesNotAllowed
	case errors.Is(err, ErrInvalidFingerprint):
		return auditErrInvalidFingerprint
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotReady
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
