package quota

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestMemoryIsSticky(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if m.Exceeded(ctx) {
		t.Fatalf("new breaker should be closed")
	}
	m.Trip(ctx, "429 insufficient_quota")
	m.Trip(ctx, "second")
	if !m.Exceeded(ctx) {
		t.Fatalf("breaker should be tripped")
	}
	st := m.Status(ctx)
	if !st.Exceeded || st.Reason != "429 insufficient_quota" || st.TrippedAt == nil {
		t.Fatalf("unexpected status %+v", st)
	}
	m.Reset(ctx)
	if m.Exceeded(ctx) || m.Status(ctx).TrippedAt != nil {
		t.Fatalf("reset should close the breaker")
	}
}

func TestMemoryConcurrentTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Trip(ctx, "quota")
			_ = m.Exceeded(ctx)
		}()
	}
	wg.Wait()
	if !m.Exceeded(ctx) {
		t.Fatalf("expected tripped")
	}
}

func newRedisPair(t *testing.T) (*Redis, *Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdbA := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	rdbB := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdbA.Close()
		_ = rdbB.Close()
	})
	return NewRedisWithClient(nil, rdbA, ""), NewRedisWithClient(nil, rdbB, ""), mr
}

func TestRedisSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	a, b, _ := newRedisPair(t)
	if a.Exceeded(ctx) || b.Exceeded(ctx) {
		t.Fatalf("fresh key should be closed")
	}
	a.Trip(ctx, "rate limit")
	b.Trip(ctx, "second reason")
	if !b.Exceeded(ctx) {
		t.Fatalf("trip should be visible to the other instance")
	}
	if got := b.Status(ctx).Reason; got != "rate limit" {
		t.Fatalf("reason=%q", got)
	}
	b.Reset(ctx)
	if a.Exceeded(ctx) {
		t.Fatalf("reset should be visible to the other instance")
	}
	a.Trip(ctx, "tripped again")
	if !b.Exceeded(ctx) || b.Status(ctx).Reason != "tripped again" {
		t.Fatalf("trip after reset=%+v", b.Status(ctx))
	}
}

func TestRedisKeyLossKeepsTrip(t *testing.T) {
	ctx := context.Background()
	a, b, mr := newRedisPair(t)
	a.Trip(ctx, "429 insufficient_quota")
	if !b.Exceeded(ctx) {
		t.Fatalf("expected tripped after trip")
	}

	mr.FlushAll()
	if !b.Exceeded(ctx) {
		t.Fatalf("keyspace loss must not close the breaker")
	}
	if !a.Exceeded(ctx) {
		t.Fatalf("tripping instance must stay open")
	}
	// The trip is re-published, so a fresh process sees it too.
	fresh := NewRedisWithClient(nil, goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "")
	defer fresh.Close()
	if st := fresh.Status(ctx); !st.Exceeded || st.Reason != "429 insufficient_quota" {
		t.Fatalf("fresh status=%+v", st)
	}
}

func TestRedisResetWritesClosedRecord(t *testing.T) {
	ctx := context.Background()
	a, _, mr := newRedisPair(t)
	a.Trip(ctx, "quota")
	a.Reset(ctx)
	raw, err := mr.Get(DefaultRedisKey)
	if err != nil {
		t.Fatalf("reset should leave a record: %v", err)
	}
	if !strings.Contains(raw, `"exceeded":false`) {
		t.Fatalf("record=%s", raw)
	}
	if a.Exceeded(ctx) {
		t.Fatalf("reset should close the breaker")
	}
}

func TestRedisTripReplayedAfterOutage(t *testing.T) {
	ctx := context.Background()
	a, b, mr := newRedisPair(t)
	mr.SetError("server down")
	a.Trip(ctx, "quota during outage")
	if !a.Exceeded(ctx) {
		t.Fatalf("local trip should hold during the outage")
	}
	mr.SetError("")
	if !a.Exceeded(ctx) {
		t.Fatalf("trip should survive recovery")
	}
	if st := b.Status(ctx); !st.Exceeded || st.Reason != "quota during outage" {
		t.Fatalf("replayed status=%+v", st)
	}
}

func TestRedisOutageKeepsLocalTrip(t *testing.T) {
	ctx := context.Background()
	// Nothing listens here; every command fails.
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()
	r := NewRedisWithClient(nil, rdb, "")
	if r.Exceeded(ctx) {
		t.Fatalf("should start closed")
	}
	r.Trip(ctx, "quota")
	if !r.Exceeded(ctx) {
		t.Fatalf("outage must not close a tripped breaker")
	}
}
