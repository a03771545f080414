package goCredential

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func BenchmarkVerify(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	res, err := engine.Issue(context.Background(), IssueRequest{Kind: KindRefreshToken, OwnerID: "u1"})
	if err != nil {
		b.Fatalf("issue failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Verify(context.Background(), res.Secret); err != nil {
			b.Fatalf("verify failed: %v", err)
		}
	}
}

func BenchmarkVerifyRejectedUnknown(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Verify(context.Background(), "bench-unknown-secret-value"); err == nil {
			b.Fatal("expected rejection")
		}
	}
}

func BenchmarkIssue(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Issue(context.Background(), IssueRequest{Kind: KindAPIKey, OwnerID: "svc1"}); err != nil {
			b.Fatalf("issue failed: %v", err)
		}
	}
}

func BenchmarkRotate(b *testing.B) {
	engine, cleanup := newBenchmarkEngine(b)
	defer cleanup()

	res, err := engine.Issue(context.Background(), IssueRequest{Kind: KindRefreshToken, OwnerID: "u1"})
	if err != nil {
		b.Fatalf("issue failed: %v", err)
	}
	secret := res.Secret

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := engine.Rotate(context.Background(), secret)
		if err != nil {
			b.Fatalf("rotate failed: %v", err)
		}
		secret = next.Secret
	}
}

func newBenchmarkEngine(tb testing.TB) (*Engine, func()) {
	tb.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		tb.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := DefaultConfig()
	cfg.Secret.Memory = 8 * 1024
	cfg.Secret.Time = 1
	cfg.Secret.Parallelism = 1
	cfg.Metrics.Enabled = false
	cfg.Audit.Enabled = false
	cfg.Session.MaxActivePerOwner = 0

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		tb.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}
