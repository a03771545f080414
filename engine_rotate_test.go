package goCredential

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRotateRoundTrip(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	ctx := context.Background()
	issued := mustIssue(t, engine, IssueRequest{Kind: KindRefreshToken, OwnerID: "u1"})

	rotated, err := engine.Rotate(ctx, issued.Secret)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if rotated.Secret == issued.Secret {
		t.Fatal("rotation reissued the same secret")
	}
	if rotated.Credential.ID == issued.Credential.ID {
		t.Fatal("rotation reused the predecessor id")
	}

	// The predecessor is consumed.
	if _, err := engine.Verify(ctx, issued.Secret); !errors.Is(err, ErrCredentialRejected) {
		t.Fatalf("expected predecessor to be rejected, got %v", err)
	}

	info, err := engine.Verify(ctx, rotated.Secret)
	if err != nil {
		t.Fatalf("replacement verify failed: %v", err)
	}
	if info.OwnerID != "u1" {
		t.Fatalf("expected owner u1, got %s", info.OwnerID)
	}
	if got := counterValue(engine, MetricRotateSuccess); got != 1 {
		t.Fatalf("expected 1 rotate success, got %d", got)
	}
}

func TestRotatePreservesCredentialMetadata(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	issued := mustIssue(t, engine, IssueRequest{
		Kind:    KindAPIKey,
		OwnerID: "svc1",
		Scopes:  []string{"user.read", "user.write"},
		Label:   "billing worker",
		Device:  "worker-03",
	})

	rotated, err := engine.Rotate(context.Background(), issued.Secret)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	got := rotated.Credential
	if got.Kind != KindAPIKey {
		t.Fatalf("expected api key kind, got %v", got.Kind)
	}
	if got.OwnerID != "svc1" {
		t.Fatalf("expected owner svc1, got %s", got.OwnerID)
	}
	if got.Label != "billing worker" {
		t.Fatalf("expected label preserved, got %q", got.Label)
	}
	if got.Device != "worker-03" {
		t.Fatalf("expected device preserved, got %q", got.Device)
	}
	if len(got.Scopes) != 2 || got.Scopes[0] != "user.read" || got.Scopes[1] != "user.write" {
		t.Fatalf("expected scopes preserved, got %v", got.Scopes)
	}
	if got.Fingerprint == issued.Credential.Fingerprint {
		t.Fatal("rotation kept the predecessor fingerprint")
	}
}

func TestRotateRestartsExpiryWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Session.RefreshTokenTTL = time.Hour

	engine, _, clock, done := newTestEngineWithConfig(t, cfg)
	defer done()

	issued := mustIssue(t, engine, IssueRequest{Kind: KindRefreshToken, OwnerID: "u1"})

	clock.Advance(30 * time.Minute)

	rotated, err := engine.Rotate(context.Background(), issued.Secret)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	// The replacement gets the predecessor's full window measured from now,
	// not the predecessor's remaining time.
	want := clock.Now().Add(time.Hour).Unix()
	if got := rotated.Credential.ExpiresAt.Unix(); got != want {
		t.Fatalf("expected expiry %d, got %d", want, got)
	}
}

func TestRotateNeverExpiringCredentialStaysImmortal(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	issued := mustIssue(t, engine, IssueRequest{
		Kind:    KindRefreshToken,
		OwnerID: "u1",
		TTL:     -1,
	})

	rotated, err := engine.Rotate(context.Background(), issued.Secret)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if !rotated.Credential.ExpiresAt.IsZero() {
		t.Fatalf("expected no expiry, got %v", rotated.Credential.ExpiresAt)
	}
}

func TestRotateLegacySecretMigratesFirst(t *testing.T) {
	engine, rdb, clock, done := newTestEngine(t)
	defer done()

	ctx := context.Background()
	raw := "legacy-refresh-secret-000000000000000006"
	seedLegacyRecord(t, rdb, legacyRecord("leg6", "u1", raw, clock.Now().Unix()))

	rotated, err := engine.Rotate(ctx, raw)
	if err != nil {
		t.Fatalf("Rotate of legacy secret failed: %v", err)
	}

	if _, err := engine.Verify(ctx, raw); !errors.Is(err, ErrCredentialRejected) {
		t.Fatalf("expected legacy secret to be consumed, got %v", err)
	}
	if _, err := engine.Verify(ctx, rotated.Secret); err != nil {
		t.Fatalf("replacement verify failed: %v", err)
	}

	// Exactly the replacement remains active for the owner.
	list, err := engine.ListActive(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != rotated.Credential.ID {
		t.Fatalf("expected only the replacement active, got %v", list)
	}

	if got := counterValue(engine, MetricLegacyMigrated); got != 1 {
		t.Fatalf("expected 1 migration, got %d", got)
	}
	if got := counterValue(engine, MetricRotateSuccess); got != 1 {
		t.Fatalf("expected 1 rotate success, got %d", got)
	}
}

func TestRotateUnknownSecretFails(t *testing.T) {
	engine, _, _, done := newTestEngine(t)
	defer done()

	if _, err := engine.Rotate(context.Background(), "nope"); !errors.Is(err, ErrCredentialRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if got := counterValue(engine, MetricRotateFailure); got != 1 {
		t.Fatalf("expected 1 rotate failure, got %d", got)
	}
}

func TestRotateKeepsOwnerUnderSessionCap(t *testing.T) {
	cfg := testConfig()
	cfg.Session.MaxActivePerOwner = 2

	engine, _, _, done := newTestEngineWithConfig(t, cfg)
	defer done()

	ctx := context.Background()
	first := mustIssue(t, engine, IssueRequest{Kind: KindRefreshToken, OwnerID: "u1"})
	second := mustIssue(t, engine, IssueRequest{Kind: KindRefreshToken, OwnerID: "u1"})

	// Rotation replaces in place; the sibling credential must survive.
	rotated, err := engine.Rotate(ctx, second.Secret)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	n, err := engine.CountActive(ctx, "u1")
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 active credentials, got %d", n)
	}
	if _, err := engine.Verify(ctx, first.Secret); err != nil {
		t.Fatalf("sibling credential verify failed: %v", err)
	}
	if _, err := engine.Verify(ctx, rotated.Secret); err != nil {
		t.Fatalf("replacement verify failed: %v", err)
	}
}
