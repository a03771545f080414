package goCredential

import (
	"errors"

	"github.com/MrEthical07/goCredential/credential"
)

var (
	// ErrEngineNotReady is an exported constant or variable used by the credential engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrCredentialRejected is an exported constant or variable used by the credential engine.
	ErrCredentialRejected = errors.New("credential rejected")
	// ErrOwnerIDRequired is an exported constant or variable used by the credential engine.
	ErrOwnerIDRequired = errors.New("owner id required")
	// ErrInvalidKind is an exported constant or variable used by the credential engine.
	ErrInvalidKind = errors.New("invalid credential kind")
	// ErrSecretTooLong is an exported constant or variable used by the credential engine.
	ErrSecretTooLong = errors.New("secret exceeds maximum length")
	// ErrScopesNotAllowed is an exported constant or variable used by the credential engine.
	ErrScopesNotAllowed = errors.New("scopes not supported for credential kind")
	// ErrInvalidFingerprint is an exported constant or variable used by the credential engine.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)

var (
	// ErrStoreUnavailable is an exported constant or variable used by the credential engine.
	ErrStoreUnavailable = credential.ErrStoreUnavailable
	// ErrMigrationConflict is an exported constant or variable used by the credential engine.
	ErrMigrationConflict = credential.ErrMigrationConflict
)
