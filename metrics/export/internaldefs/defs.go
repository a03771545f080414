package internaldefs

import (
	goCredential "github.com/MrEthical07/goCredential"
)

// CounterDef defines a public type used by goCredential APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goCredential.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goCredential APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goCredential.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the credential engine.
var CounterDefs = []CounterDef{
	{ID: goCredential.MetricIssueSuccess, Name: "gocredential_issue_success_total", Help: "Successful credential issues."},
	{ID: goCredential.MetricIssueFailure, Name: "gocredential_issue_failure_total", Help: "Failed credential issues."},
	{ID: goCredential.MetricVerifyAccepted, Name: "gocredential_verify_accepted_total", Help: "Accepted verifications."},
	{ID: goCredential.MetricVerifyRejected, Name: "gocredential_verify_rejected_total", Help: "Rejected verifications."},
	{ID: goCredential.MetricRotateSuccess, Name: "gocredential_rotate_success_total", Help: "Successful rotations."},
	{ID: goCredential.MetricRotateFailure, Name: "gocredential_rotate_failure_total", Help: "Failed rotations."},
	{ID: goCredential.MetricRevoke, Name: "gocredential_revoke_total", Help: "Single-credential revocations."},
	{ID: goCredential.MetricRevokeAll, Name: "gocredential_revoke_all_total", Help: "Revoke-all operations."},
	{ID: goCredential.MetricRevokeAllExcept, Name: "gocredential_revoke_all_except_total", Help: "Revoke-all-except operations."},
	{ID: goCredential.MetricLegacyMigrated, Name: "gocredential_legacy_migrated_total", Help: "Legacy records migrated to the fingerprinted format."},
	{ID: goCredential.MetricMigrationConflict, Name: "gocredential_migration_conflict_total", Help: "Legacy migrations abandoned after a conflicting upgrade."},
	{ID: goCredential.MetricSessionLimitEvicted, Name: "gocredential_session_limit_evicted_total", Help: "Credentials evicted by session-limit enforcement."},
	{ID: goCredential.MetricSessionLimitEnforced, Name: "gocredential_session_limit_enforced_total", Help: "Session-limit enforcement sweeps."},
	{ID: goCredential.MetricStoreError, Name: "gocredential_store_error_total", Help: "Backend store failures."},
}

// HistogramDefs is an exported constant or variable used by the credential engine.
var HistogramDefs = []HistogramDef{
	{ID: goCredential.MetricVerifyLatency, Name: "gocredential_verify_latency_seconds", Help: "Verify latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the credential engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the credential engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
