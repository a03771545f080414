package credential

import "time"

// Kind identifies what a stored credential is used for.
type Kind uint8

const (
	// KindRefreshToken marks a long-lived session continuation secret.
	KindRefreshToken Kind = 1
	// KindAPIKey marks a programmatic access secret with optional scopes.
	KindAPIKey Kind = 2
)

// Valid reports whether the kind is one of the declared credential kinds.
func (k Kind) Valid() bool {
	return k == KindRefreshToken || k == KindAPIKey
}

func (k Kind) String() string {
	switch k {
	case KindRefreshToken:
		return "refresh_token"
	case KindAPIKey:
		return "api_key"
	default:
		return "unknown"
	}
}

// Format tags how the secret material of a record is stored. The tag is
// explicit on every record; callers must never infer it from empty fields.
// The numeric values double as the blob format version written by Encode.
type Format uint8

const (
	// FormatLegacy marks a record whose SecretHash holds the raw-comparable
	// value written by the system that predates fingerprint indexing.
	FormatLegacy Format = 1
	// FormatFingerprinted marks a record carrying a lookup fingerprint and a
	// slow salted hash in SecretHash.
	FormatFingerprinted Format = 2
)

// Valid reports whether the format is one of the declared storage formats.
func (f Format) Valid() bool {
	return f == FormatLegacy || f == FormatFingerprinted
}

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatFingerprinted:
		return "fingerprinted"
	default:
		return "unknown"
	}
}

// Record defines a public type used by goCredential APIs.
//
// Record instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise. Timestamps are unix
// seconds; ExpiresAt zero means the record never expires. An empty OwnerID is
// a valid permanent state for system-level API keys, not a pending value.
type Record struct {
	ID      string
	Kind    Kind
	Format  Format
	OwnerID string

	// SecretHash is the PHC-encoded slow hash for fingerprinted records, or
	// the raw-comparable value for legacy records. It must never be logged or
	// exposed through read APIs.
	SecretHash string

	// Fingerprint is the fast lookup digest of the raw secret. Zero for
	// legacy records.
	Fingerprint [32]byte

	Device     string
	RemoteAddr string
	Label      string
	Scopes     []string

	Revoked   bool
	CreatedAt int64
	UpdatedAt int64
	ExpiresAt int64
}

// Expired reports whether the record's expiry has passed at t. Records with
// ExpiresAt zero never expire.
func (r *Record) Expired(t time.Time) bool {
	return r.ExpiresAt > 0 && r.ExpiresAt <= t.Unix()
}

// Usable reports whether the record can still satisfy a verification at t:
// not revoked and not expired. Revocation is monotonic, so a record that is
// unusable here never becomes usable again.
func (r *Record) Usable(t time.Time) bool {
	return !r.Revoked && !r.Expired(t)
}

// Clone returns a deep copy. Store implementations hand out clones so callers
// cannot mutate cached state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Scopes != nil {
		out.Scopes = append([]string(nil), r.Scopes...)
	}
	return &out
}
