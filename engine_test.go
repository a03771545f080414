package goCredential

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goCredential/credential"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// testClock is a mutable time source so expiry tests do not sleep.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret.Memory = 8192
	cfg.Secret.Time = 1
	cfg.Secret.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *redis.Client, *testClock, func()) {
	t.Helper()
	return newTestEngineWithConfig(t, testConfig())
}

func newTestEngineWithConfig(t *testing.T, cfg Config) (*Engine, *redis.Client, *testClock, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock.Now).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, rdb, clock, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// seedLegacyRecord plants a pre-fingerprint record the way the predecessor
// system stored it: the raw-comparable value in the record blob plus a raw
// lookup index entry. The key layout matches credential.RedisStore.
func seedLegacyRecord(t *testing.T, rdb *redis.Client, rec *credential.Record) {
	t.Helper()

	blob, err := credential.Encode(rec)
	if err != nil {
		t.Fatalf("encode legacy record failed: %v", err)
	}

	ctx := context.Background()
	if err := rdb.Set(ctx, "gc:cr:"+rec.ID, blob, 0).Err(); err != nil {
		t.Fatalf("seed record blob failed: %v", err)
	}
	if err := rdb.Set(ctx, "gc:cl:"+rec.SecretHash, rec.ID, 0).Err(); err != nil {
		t.Fatalf("seed legacy index failed: %v", err)
	}
	if err := rdb.ZAdd(ctx, "gc:co:"+rec.OwnerID, redis.Z{Score: float64(rec.CreatedAt), Member: rec.ID}).Err(); err != nil {
		t.Fatalf("seed owner index failed: %v", err)
	}
}

func legacyRecord(id, owner, raw string, createdAt int64) *credential.Record {
	return &credential.Record{
		ID:         id,
		Kind:       credential.KindRefreshToken,
		Format:     credential.FormatLegacy,
		OwnerID:    owner,
		SecretHash: raw,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func mustIssue(t *testing.T, engine *Engine, req IssueRequest) *IssueResult {
	t.Helper()

	res, err := engine.Issue(context.Background(), req)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if res.Secret == "" {
		t.Fatal("expected non-empty secret")
	}
	return res
}

func counterValue(engine *Engine, id MetricID) uint64 {
	return engine.MetricsSnapshot().Counters[id]
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	res := mustIssue(t, engine, IssueRequest{
		Kind:    KindRefreshToken,
		OwnerID: "u1",
		Device:  "laptop",
	})

	info, err := engine.Verify(context.Background(), res.Secret)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if info.ID != res.Credential.ID {
		t.Fatalf("expected credential %s, got %s", res.Credential.ID, info.ID)
	}
	if info.OwnerID != "u1" {
		t.Fatalf("expected owner u1, got %s", info.OwnerID)
	}
	if info.Kind != KindRefreshToken {
		t.Fatalf("expected refresh token kind, got %v", info.Kind)
	}
	if info.Device != "laptop" {
		t.Fatalf("expected device laptop, got %s", info.Device)
	}
	if info.Fingerprint == "" {
		t.Fatal("expected fingerprint hex to be exposed")
	}

	if got := counterValue(engine, MetricVerifyAccepted); got != 1 {
		t.Fatalf("expected 1 accepted verify, got %d", got)
	}
}

func TestVerifyNeverReturnsSecretMaterial(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	res := mustIssue(t, engine, IssueRequest{
		Kind:    KindAPIKey,
		OwnerID: "svc1",
		Scopes:  []string{"read"},
	})

	info, err := engine.Verify(context.Background(), res.Secret)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	// The info view carries only the fingerprint hex, never the secret or its
	// slow hash. The fingerprint must not equal the secret.
	if info.Fingerprint == res.Secret {
		t.Fatal("fingerprint must not be the raw secret")
	}
}

func TestVerifyUnknownSecretRejected(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	_, err := engine.Verify(context.Background(), "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	if !errors.Is(err, ErrCredentialRejected) {
		t.Fatalf("expected ErrCredentialRejected, got %v", err)
	}
	if got := counterValue(engine, MetricVerifyRejected); got != 1 {
		t.Fatalf("expected 1 rejected verify, got %d", got)
	}
}

func TestVerifyTamperedSecretRejectedUniformly(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	res := mustIssue(t, engine, IssueRequest{
		Kind:    KindRefreshToken,
		OwnerID: "u1",
	})

	tampered := []byte(res.Secret)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	_, tamperErr := engine.Verify(context.Background(), string(tampered))
	_, unknownErr := engine.Verify(context.Background(), "completely-unknown-value-000000000000000000")

	if !errors.Is(tamperErr, ErrCredentialRejected) {
		t.Fatalf("expected ErrCredentialRejected for tampered secret, got %v", tamperErr)
	}
	if !errors.Is(unknownErr, ErrCredentialRejected) {
		t.Fatalf("expected ErrCredentialRejected for unknown secret, got %v", unknownErr)
	}
	// Callers must not be able to distinguish the two failures.
	if tamperErr.Error() != unknownErr.Error() {
		t.Fatalf("rejection errors differ: %q vs %q", tamperErr, unknownErr)
	}
}

func TestVerifyOversizedInputRejected(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	huge := make([]byte, 2048)
	for i := range huge {
		huge[i] = 'a'
	}

	_, err := engine.Verify(context.Background(), string(huge))
	if !errors.Is(err, ErrSecretTooLong) {
		t.Fatalf("expected ErrSecretTooLong, got %v", err)
	}
}

func TestVerifyExpiredCredentialRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Session.RefreshTokenTTL = time.Hour

	engine, _, clock, done := newTestEngineWithConfig(t, cfg)
	defer done()

	res := mustIssue(t, engine, IssueRequest{
		Kind:    KindRefreshToken,
		OwnerID: "u1",
	})

	if _, err := engine.Verify(context.Background(), res.Secret); err != nil {
		t.Fatalf("Verify before expiry failed: %v", err)
	}

	clock.Advance(2 * time.Hour)

	if _, err := engine.Verify(context.Background(), res.Secret); !errors.Is(err, ErrCredentialRejected) {
		t.Fatalf("expected ErrCredentialRejected after expiry, got %v", err)
	}
}

func TestVerifyRevokedCredentialRejected(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	res := mustIssue(t, engine, IssueRequest{
		Kind:    KindRefreshToken,
		OwnerID: "u1",
	})

	ok, err := engine.Revoke(context.Background(), res.Credential.ID)
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if !ok {
		t.Fatal("expected revoke to report a transition")
	}

	if _, err := engine.Verify(context.Background(), res.Secret); !errors.Is(err, ErrCredentialRejected) {
		t.Fatalf("expected ErrCredentialRejected after revocation, got %v", err)
	}
}

func TestEngineNotReadyGuards(t *testing.T) {
	var engine *Engine

	if _, err := engine.Verify(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady from nil engine, got %v", err)
	}

	empty := &Engine{}
	if _, err := empty.Issue(context.Background(), IssueRequest{Kind: KindAPIKey}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady from zero engine, got %v", err)
	}
	if _, err := empty.Rotate(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := empty.Revoke(context.Background(), "id"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := empty.ListActive(context.Background(), "u1"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if status := empty.Health(context.Background()); status.Healthy || status.Err == nil {
		t.Fatal("expected unhealthy status from zero engine")
	}
}

func TestStoreOutageSurfacesAsUnavailable(t *testing.T) {
	engine, rdb, _, done := newTestEngine(t)
	defer done()

	res := mustIssue(t, engine, IssueRequest{
		Kind:    KindRefreshToken,
		OwnerID: "u1",
	})

	// Kill the connection; subsequent calls must fail loud, not as rejection.
	_ = rdb.Close()

	_, err := engine.Verify(context.Background(), res.Secret)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrCredentialRejected) {
		t.Fatal("store outage must not masquerade as a credential rejection")
	}
}
