package goCredential

import (
	"io"
	"time"

	"github.com/MrEthical07/goCredential/credential"
	internalaudit "github.com/MrEthical07/goCredential/internal/audit"
	internalmetrics "github.com/MrEthical07/goCredential/internal/metrics"
	"github.com/MrEthical07/goCredential/secret"
)

// CredentialStore persists credential records and their lookup indexes.
// [credential.RedisStore] and [credential.PostgresStore] are the provided
// implementations; callers may inject their own. The engine owns neither the
// Redis client nor the connection pool behind a store.
type CredentialStore = credential.Store

// Kind identifies the credential class. The kind decides lifetime defaults,
// owner requirements, and whether scopes may be attached.
type Kind = credential.Kind

const (
	// KindRefreshToken marks a session-bound credential. Owner is required
	// and the configured refresh TTL applies.
	KindRefreshToken = credential.KindRefreshToken
	// KindAPIKey marks a long-lived service credential. Owner is optional
	// and scopes may be attached.
	KindAPIKey = credential.KindAPIKey
)

// CredentialInfo is the public, secret-free view of a stored credential
// returned by [Engine.Issue], [Engine.Verify], and introspection methods.
// It never carries the raw secret or the slow hash.
type CredentialInfo struct {
	ID          string
	Kind        Kind
	OwnerID     string
	Fingerprint string
	Device      string
	RemoteAddr  string
	Label       string
	Scopes      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	Revoked     bool
}

// Active reports whether the credential has not been revoked. Expiry is
// evaluated against the engine clock at lookup time, not stored here.
func (c CredentialInfo) Active() bool {
	return !c.Revoked
}

// IssueRequest is the input for [Engine.Issue]. Kind is required. OwnerID is
// required for refresh tokens and optional for API keys. Zero TTL and zero
// MaxActive fall back to the configured defaults; a negative TTL issues a
// credential that never expires; a negative MaxActive disables the active cap
// for this issue only.
type IssueRequest struct {
	Kind       Kind
	OwnerID    string
	TTL        time.Duration
	MaxActive  int
	Device     string
	RemoteAddr string
	Label      string
	Scopes     []string
}

// IssueResult is returned by [Engine.Issue]. Secret is the raw credential in
// its presentable form; it is shown exactly once and never persisted.
type IssueResult struct {
	Credential CredentialInfo
	Secret     string
	Evicted    int
}

// HealthStatus is returned by [Engine.Health]. Err carries the backend error
// when Healthy is false.
type HealthStatus struct {
	Healthy bool
	Latency time.Duration
	Err     error
}

func infoFromRecord(rec *credential.Record) CredentialInfo {
	if rec == nil {
		return CredentialInfo{}
	}

	info := CredentialInfo{
		ID:         rec.ID,
		Kind:       rec.Kind,
		OwnerID:    rec.OwnerID,
		Device:     rec.Device,
		RemoteAddr: rec.RemoteAddr,
		Label:      rec.Label,
		CreatedAt:  time.Unix(rec.CreatedAt, 0).UTC(),
		UpdatedAt:  time.Unix(rec.UpdatedAt, 0).UTC(),
		Revoked:    rec.Revoked,
	}
	if rec.Format == credential.FormatFingerprinted {
		info.Fingerprint = secret.FingerprintHex(rec.Fingerprint)
	}
	if len(rec.Scopes) > 0 {
		info.Scopes = append([]string(nil), rec.Scopes...)
	}
	if rec.ExpiresAt > 0 {
		info.ExpiresAt = time.Unix(rec.ExpiresAt, 0).UTC()
	}
	return info
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricIssueSuccess is an exported constant or variable used by the credential engine.
	MetricIssueSuccess = MetricID(internalmetrics.MetricIssueSuccess)
	// MetricIssueFailure is an exported constant or variable used by the credential engine.
	MetricIssueFailure = MetricID(internalmetrics.MetricIssueFailure)
	// MetricVerifyAccepted is an exported constant or variable used by the credential engine.
	MetricVerifyAccepted = MetricID(internalmetrics.MetricVerifyAccepted)
	// MetricVerifyRejected is an exported constant or variable used by the credential engine.
	MetricVerifyRejected = MetricID(internalmetrics.MetricVerifyRejected)
	// MetricRotateSuccess is an exported constant or variable used by the credential engine.
	MetricRotateSuccess = MetricID(internalmetrics.MetricRotateSuccess)
	// MetricRotateFailure is an exported constant or variable used by the credential engine.
	MetricRotateFailure = MetricID(internalmetrics.MetricRotateFailure)
	// MetricRevoke is an exported constant or variable used by the credential engine.
	MetricRevoke = MetricID(internalmetrics.MetricRevoke)
	// MetricRevokeAll is an exported constant or variable used by the credential engine.
	MetricRevokeAll = MetricID(internalmetrics.MetricRevokeAll)
	// MetricRevokeAllExcept is an exported constant or variable used by the credential engine.
	MetricRevokeAllExcept = MetricID(internalmetrics.MetricRevokeAllExcept)
	// MetricLegacyMigrated is an exported constant or variable used by the credential engine.
	MetricLegacyMigrated = MetricID(internalmetrics.MetricLegacyMigrated)
	// MetricMigrationConflict is an exported constant or variable used by the credential engine.
	MetricMigrationConflict = MetricID(internalmetrics.MetricMigrationConflict)
	// MetricSessionLimitEvicted is an exported constant or variable used by the credential engine.
	MetricSessionLimitEvicted = MetricID(internalmetrics.MetricSessionLimitEvicted)
	// MetricSessionLimitEnforced is an exported constant or variable used by the credential engine.
	MetricSessionLimitEnforced = MetricID(internalmetrics.MetricSessionLimitEnforced)
	// MetricStoreError is an exported constant or variable used by the credential engine.
	MetricStoreError = MetricID(internalmetrics.MetricStoreError)
	// MetricVerifyLatency is an exported constant or variable used by the credential engine.
	MetricVerifyLatency = MetricID(internalmetrics.MetricVerifyLatency)

	metricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
