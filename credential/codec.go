package credential

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Blob layout, all integers big-endian:
//
//	[0]     format version (1 = legacy, 2 = fingerprinted)
//	[1]     kind
//	[2]     revoked flag
//	[3:11]  created_at unix seconds
//	[11:19] updated_at unix seconds
//	[19:27] expires_at unix seconds, 0 = never
//	[27:59] fingerprint, version 2 only
//	then    secret hash, uint16 length prefix
//	then    owner, device, remote addr, label, each uint8 length prefix
//	then    scope count uint8, each scope uint8 length prefix
//
// The header up to expires_at sits at fixed offsets. Store scripts splice the
// revoked flag and updated_at in place without a full parse; changing these
// offsets breaks every Lua script in redis.go.
const (
	blobHeaderSize    = 27
	blobMaxFieldLen   = 255
	blobMaxHashLen    = 1024
	blobMaxScopeCount = 64
)

// ErrCorruptRecord is an exported constant or variable used by the credential engine.
var ErrCorruptRecord = errors.New("corrupt credential record")

// ErrUnknownBlobVersion is an exported constant or variable used by the credential engine.
var ErrUnknownBlobVersion = errors.New("unknown credential blob version")

// Encode serializes a record into the binary blob format. The record's Format
// selects the blob version; legacy records carry no fingerprint bytes.
func Encode(r *Record) ([]byte, error) {
	if !r.Format.Valid() {
		return nil, ErrUnknownBlobVersion
	}

	var buf bytes.Buffer

	buf.WriteByte(byte(r.Format))
	buf.WriteByte(byte(r.Kind))
	if r.Revoked {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	if r.Format == FormatFingerprinted {
		buf.Write(r.Fingerprint[:])
	}

	if len(r.SecretHash) > blobMaxHashLen {
		return nil, errors.New("secret hash too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(r.SecretHash))); err != nil {
		return nil, err
	}
	buf.WriteString(r.SecretHash)

	for _, f := range []struct {
		name  string
		value string
	}{
		{"owner id", r.OwnerID},
		{"device", r.Device},
		{"remote addr", r.RemoteAddr},
		{"label", r.Label},
	} {
		if len(f.value) > blobMaxFieldLen {
			return nil, fmt.Errorf("%s too long", f.name)
		}
		buf.WriteByte(byte(len(f.value)))
		buf.WriteString(f.value)
	}

	if len(r.Scopes) > blobMaxScopeCount {
		return nil, errors.New("too many scopes")
	}
	buf.WriteByte(byte(len(r.Scopes)))
	for _, s := range r.Scopes {
		if len(s) > blobMaxFieldLen {
			return nil, errors.New("scope too long")
		}
		buf.WriteByte(byte(len(s)))
		buf.WriteString(s)
	}

	return buf.Bytes(), nil
}

// Decode parses a blob back into a record. The record ID is not part of the
// blob; callers set it from the key the blob was loaded under.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	format := Format(version)
	if !format.Valid() {
		return nil, ErrUnknownBlobVersion
	}

	r := &Record{Format: format}

	kind, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	r.Kind = Kind(kind)

	revoked, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	r.Revoked = revoked != 0

	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &r.UpdatedAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, ErrCorruptRecord
	}

	if format == FormatFingerprinted {
		if _, err := io.ReadFull(reader, r.Fingerprint[:]); err != nil {
			return nil, ErrCorruptRecord
		}
	}

	var hashLen uint16
	if err := binary.Read(reader, binary.BigEndian, &hashLen); err != nil {
		return nil, ErrCorruptRecord
	}
	if int(hashLen) > blobMaxHashLen {
		return nil, ErrCorruptRecord
	}
	hash := make([]byte, hashLen)
	if _, err := io.ReadFull(reader, hash); err != nil {
		return nil, ErrCorruptRecord
	}
	r.SecretHash = string(hash)

	for _, dst := range []*string{&r.OwnerID, &r.Device, &r.RemoteAddr, &r.Label} {
		v, err := readSmallString(reader)
		if err != nil {
			return nil, ErrCorruptRecord
		}
		*dst = v
	}

	scopeCount, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if int(scopeCount) > blobMaxScopeCount {
		return nil, ErrCorruptRecord
	}
	if scopeCount > 0 {
		r.Scopes = make([]string, 0, scopeCount)
		for i := 0; i < int(scopeCount); i++ {
			s, err := readSmallString(reader)
			if err != nil {
				return nil, ErrCorruptRecord
			}
			r.Scopes = append(r.Scopes, s)
		}
	}

	return r, nil
}

func readSmallString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
