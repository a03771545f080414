//go:build integration
// +build integration

package test

import (
	"testing"
	"time"

	"github.com/MrEthical07/goCredential/credential"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newIntegrationStore(t *testing.T) (*credential.RedisStore, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := credential.NewRedisStore(rdb, "gc", 0)

	return store, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func makeRecord(id, ownerID string, fp [32]byte) *credential.Record {
	now := time.Now()

	return &credential.Record{
		ID:          id,
		Kind:        credential.KindRefreshToken,
		Format:      credential.FormatFingerprinted,
		OwnerID:     ownerID,
		SecretHash:  "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		Fingerprint: fp,
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}
}

func fingerprintByte(b byte) [32]byte {
	var out [32]byte
	for i := 0; i < len(out); i++ {
		out[i] = b
	}
	return out
}
