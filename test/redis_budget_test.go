//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goCredential/credential"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis Hook that counts the number of Redis round-trips
// (individual commands and pipeline calls).
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		// Each pipeline call is one network round-trip regardless of command count.
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

// newCountedStore creates a credential.RedisStore backed by miniredis with a
// cmdCounter hook installed. Reset the counter before each measured operation.
func newCountedStore(t *testing.T) (*credential.RedisStore, *redis.Client, *cmdCounter, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	// Warm the connection: go-redis may emit extra commands on first use
	// (handshake, AUTH, SELECT, CLIENT SETNAME, etc.). Issuing a PING
	// before measuring avoids counting that noise.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}

	// Reset after warmup so budget counts start clean.
	counter.Reset()

	store := credential.NewRedisStore(rdb, "gc", 0)
	return store, rdb, counter, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

// TestCreateRedisBudget verifies that record creation is a single Lua script
// call. go-redis may issue EVALSHA first and fall back to EVAL on a cold
// script cache, so the first call counts ≤ 2 commands; subsequent calls are 1.
func TestCreateRedisBudget(t *testing.T) {
	store, _, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	rec := makeRecord("cred-budget-create", "u1", fingerprintByte(0x01))

	counter.Reset()

	if _, err := store.Create(ctx, rec, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	cmds := counter.Commands()
	if cmds > 2 {
		t.Errorf("Create used %d Redis commands; budget is ≤ 2 (Lua script)", cmds)
	}
	t.Logf("Create: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestFingerprintLookupRedisBudget verifies that the verify hot path lookup
// is exactly two GETs: fingerprint index, then record blob.
func TestFingerprintLookupRedisBudget(t *testing.T) {
	store, _, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	fp := fingerprintByte(0x02)
	rec := makeRecord("cred-budget-lookup", "u2", fp)
	if _, err := store.Create(ctx, rec, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	counter.Reset()

	got, err := store.FindByFingerprint(ctx, time.Now(), fp)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record hit")
	}

	cmds := counter.Commands()
	if cmds > 2 {
		t.Errorf("FindByFingerprint used %d Redis commands; budget is ≤ 2 (GET+GET)", cmds)
	}
	t.Logf("FindByFingerprint: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestRevokeRedisBudget verifies that revocation is a single Lua script call.
func TestRevokeRedisBudget(t *testing.T) {
	store, _, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	rec := makeRecord("cred-budget-revoke", "u3", fingerprintByte(0x03))
	if _, err := store.Create(ctx, rec, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	counter.Reset()

	changed, err := store.MarkRevoked(ctx, time.Now(), "cred-budget-revoke")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !changed {
		t.Fatal("expected revoke to change state")
	}

	cmds := counter.Commands()
	if cmds > 2 {
		t.Errorf("MarkRevoked used %d Redis commands; budget is ≤ 2 (Lua script)", cmds)
	}
	t.Logf("MarkRevoked: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestListActiveRedisBudget verifies that listing an owner's records is one
// ZRANGE plus a single pipelined batch of record GETs.
func TestListActiveRedisBudget(t *testing.T) {
	store, _, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	ids := []string{"cred-list-a", "cred-list-b", "cred-list-c"}
	for i, id := range ids {
		rec := makeRecord(id, "u4", fingerprintByte(byte(0x10+i)))
		if _, err := store.Create(ctx, rec, 0); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	counter.Reset()

	recs, err := store.ListActiveForOwner(ctx, time.Now(), "u4")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != len(ids) {
		t.Fatalf("expected %d records, got %d", len(ids), len(recs))
	}

	cmds := counter.Commands()
	pipelines := counter.Pipelines()
	if cmds > int64(1+len(ids)) {
		t.Errorf("ListActiveForOwner used %d Redis commands; budget is ≤ %d (ZRANGE + batched GETs)", cmds, 1+len(ids))
	}
	if pipelines > 1 {
		t.Errorf("ListActiveForOwner used %d pipeline round-trips; budget is ≤ 1", pipelines)
	}
	t.Logf("ListActiveForOwner: %d commands, %d pipelines", cmds, pipelines)
}
