package goCredential

import (
	"errors"
	"time"
)

// Config defines a public type used by goCredential APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret  SecretConfig
	Store   StoreConfig
	Session SessionConfig
	Verify  VerifyConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
SECRET CONFIG
====================================
*/

// SecretConfig defines a public type used by goCredential APIs.
//
// SecretConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecretConfig struct {
	Memory       uint32 // in KB
	Time         uint32
	Parallelism  uint8
	SaltLength   uint32
	KeyLength    uint32
	SecretLength uint32
	MaxRawBytes  int // zero selects the codec default
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by goCredential APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	RedisPrefix     string
	RetentionWindow time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goCredential APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RefreshTokenTTL   time.Duration
	APIKeyTTL         time.Duration // zero = never expires
	MaxActivePerOwner int           // zero = unlimited
}

/*
====================================
VERIFY CONFIG
====================================
*/

// VerifyConfig defines a public type used by goCredential APIs.
//
// VerifyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerifyConfig struct {
	EnableLegacyMigration bool
}

// AuditConfig defines a public type used by goCredential APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goCredential APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return Config{
		Secret: SecretConfig{
			Memory:       65536,
			Time:         3,
			Parallelism:  2,
			SaltLength:   16,
			KeyLength:    32,
			SecretLength: 32,
			MaxRawBytes:  1024,
		},
		Store: StoreConfig{
			RedisPrefix:     "gc",
			RetentionWindow: 24 * time.Hour,
		},
		Session: SessionConfig{
			RefreshTokenTTL:   30 * 24 * time.Hour,
			APIKeyTTL:         0,
			MaxActivePerOwner: 0,
		},
		Verify: VerifyConfig{
			EnableLegacyMigration: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
PRESETS
====================================
*/

// HardenedConfig describes the hardenedconfig operation and its observable behavior.
//
// HardenedConfig may return an error when input validation, dependency calls, or security checks fail.
// HardenedConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The preset raises argon2 cost, caps live sessions per owner, enables
// blocking audit delivery, and rejects legacy secrets instead of migrating.
func HardenedConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret.Memory = 128 * 1024
	cfg.Secret.Time = 4
	cfg.Session.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.Session.APIKeyTTL = 90 * 24 * time.Hour
	cfg.Session.MaxActivePerOwner = 5
	cfg.Verify.EnableLegacyMigration = false
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	return cfg
}

// HighThroughputConfig describes the highthroughputconfig operation and its observable behavior.
//
// HighThroughputConfig may return an error when input validation, dependency calls, or security checks fail.
// HighThroughputConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The preset drops argon2 cost to the acceptable floor for verify-heavy
// workloads and keeps metrics on for capacity planning.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret.Memory = 32 * 1024
	cfg.Secret.Time = 1
	cfg.Secret.Parallelism = 4
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Secret
	if c.Secret.Memory < 8*1024 {
		return errors.New("Secret Memory must be >= 8192 KB")
	}
	if c.Secret.Time < 1 {
		return errors.New("Secret Time must be >= 1")
	}
	if c.Secret.Parallelism < 1 {
		return errors.New("Secret Parallelism must be >= 1")
	}
	if c.Secret.SaltLength < 16 {
		return errors.New("Secret SaltLength must be >= 16")
	}
	if c.Secret.KeyLength < 16 {
		return errors.New("Secret KeyLength must be >= 16")
	}
	if c.Secret.SecretLength < 16 {
		return errors.New("Secret SecretLength must be >= 16")
	}
	if c.Secret.MaxRawBytes != 0 && c.Secret.MaxRawBytes < 10 {
		return errors.New("Secret MaxRawBytes must be >= 10 or zero for the default")
	}

	// Store
	if c.Store.RetentionWindow < 0 {
		return errors.New("Store RetentionWindow must be >= 0")
	}

	// Session
	if c.Session.RefreshTokenTTL <= 0 {
		return errors.New("Session RefreshTokenTTL must be > 0")
	}
	if c.Session.APIKeyTTL < 0 {
		return errors.New("Session APIKeyTTL must be >= 0")
	}
	if c.Session.MaxActivePerOwner < 0 {
		return errors.New("Session MaxActivePerOwner must be >= 0")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
