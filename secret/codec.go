package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// FingerprintSize is the byte width of a secret fingerprint (SHA-256).
const FingerprintSize = 32

// DefaultMaxRawBytes caps raw secret input when Config.MaxRawBytes is zero.
// Unbounded input would let a caller drive argon2 cost with megabyte secrets.
const DefaultMaxRawBytes = 1024

const (
	minMemoryKB     uint32 = 8 * 1024
	minTimeCost     uint32 = 1
	minParallelism  uint8  = 1
	minSaltLength   uint32 = 16
	minKeyLength    uint32 = 16
	minSecretLength uint32 = 16 // 128 bits of entropy per generated secret
	minRawBytes            = 10
	algorithmID            = "argon2id"
)

// Config holds argon2id parameters and the entropy width of generated secrets.
type Config struct {
	Memory       uint32
	Time         uint32
	Parallelism  uint8
	SaltLength   uint32
	KeyLength    uint32
	SecretLength uint32
	MaxRawBytes  int
}

// Codec generates raw secrets and computes their fingerprint and slow hash.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	config Config
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.MaxRawBytes == 0 {
		cfg.MaxRawBytes = DefaultMaxRawBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Codec{config: cfg}, nil
}

// MaxRawBytes reports the longest raw secret this Codec accepts.
func (c *Codec) MaxRawBytes() int {
	return c.config.MaxRawBytes
}

// Generate returns a new high-entropy raw secret as a base64url string.
// The raw value is handed to the caller exactly once and never persisted.
func (c *Codec) Generate() (string, error) {
	buf := make([]byte, c.config.SecretLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint computes the deterministic lookup digest of a raw secret.
// It is pure and fast; it narrows storage lookups and is not a security boundary.
func (c *Codec) Fingerprint(raw string) [FingerprintSize]byte {
	return sha256.Sum256([]byte(raw))
}

// FingerprintHex renders a fingerprint as 64 lowercase hex characters, the form
// used for index keys and safe external exposure.
func FingerprintHex(fp [FingerprintSize]byte) string {
	return hex.EncodeToString(fp[:])
}

// Hash derives the salted argon2id hash of a raw secret in PHC string format.
// Raw input uses the exact bytes provided (no Unicode normalization).
func (c *Codec) Hash(raw string) (string, error) {
	if len(raw) < minRawBytes {
		return "", errors.New("secret must be at least 10 bytes")
	}
	if len(raw) > c.config.MaxRawBytes {
		return "", errors.New("secret exceeds maximum length")
	}

	salt := make([]byte, c.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(raw),
		salt,
		c.config.Time,
		c.config.Memory,
		c.config.Parallelism,
		c.config.KeyLength,
	)

	saltEncoded := base64.StdEncoding.EncodeToString(salt)
	hashEncoded := base64.StdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		c.config.Memory,
		c.config.Time,
		c.config.Parallelism,
		saltEncoded,
		hashEncoded,
	), nil
}

// Verify re-derives the hash with the parameters embedded in encodedHash and
// compares in constant time. The derivation cost is deliberate and must not be
// cancelled mid-computation.
func (c *Codec) Verify(raw string, encodedHash string) (bool, error) {
	if len(raw) > c.config.MaxRawBytes {
		return false, errors.New("secret exceeds maximum length")
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(raw),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with weaker parameters
// than this Codec is configured with.
func (c *Codec) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	if c.config.Memory > parsed.memory {
		return true, nil
	}
	if c.config.Time > parsed.time {
		return true, nil
	}
	if c.config.Parallelism > parsed.parallelism {
		return true, nil
	}
	if c.config.KeyLength != parsed.keyLength {
		return true, nil
	}

	return false, nil
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}

	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	versionPart := parts[2]
	if !strings.HasPrefix(versionPart, "v=") {
		return nil, errors.New("missing argon2 version")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(versionPart, "v="))
	if err != nil {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}

	hash, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(hash) == 0 {
		return nil, errors.New("invalid hash length")
	}

	return &parsedPHC{
		memory:      params.memory,
		time:        params.time,
		parallelism: params.parallelism,
		salt:        salt,
		hash:        hash,
		keyLength:   uint32(len(hash)),
	}, nil
}

type parsedParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parseParams(part string) (*parsedParams, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("invalid parameter format")
	}

	var (
		memorySet, timeSet, parallelismSet bool
		params                             parsedParams
	)

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid parameter entry")
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			params.memory = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			params.time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			params.parallelism = uint8(v)
			parallelismSet = true
		default:
			return nil, errors.New("unsupported parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return nil, errors.New("missing parameters")
	}

	return &params, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("secret memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("secret time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("secret parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("secret salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("secret key length must be >= 16")
	}
	if cfg.SecretLength < minSecretLength {
		return errors.New("secret length must be >= 16 bytes")
	}
	if cfg.MaxRawBytes < minRawBytes {
		return errors.New("max raw bytes must be >= 10")
	}

	return nil
}
