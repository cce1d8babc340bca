package infra

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"request-gate/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStatsStore_CountsByRouteAndLimiter(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Key: "1.2.3.4", Limiter: "api", Route: "api", Allowed: true})
	_ = s.Record(ctx, domain.StatsEvent{Key: "1.2.3.4", Limiter: "api", Route: "api", Allowed: false})
	_ = s.Record(ctx, domain.StatsEvent{Key: "5.6.7.8", Limiter: "auth", Route: "auth_api", Allowed: true})

	if got := s.Total(); got.Allowed != 2 || got.Denied != 1 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if got := s.ByRoute()["api"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected route counters: %+v", got)
	}
	if got := s.ByLimiter()["auth"]; got.Allowed != 1 {
		t.Fatalf("unexpected limiter counters: %+v", got)
	}
	if got := s.ByKey()["1.2.3.4"]; got.Denied != 1 {
		t.Fatalf("unexpected key counters: %+v", got)
	}
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "k", Allowed: true})
	if len(s.ByKey()) != 0 {
		t.Fatalf("expected no per-key counters without WithTrackKeys")
	}
	if len(s.ByRoute()) != 0 {
		t.Fatalf("expected no route counters for an event without route")
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisStatsStore_RecordsTotalsAndBuckets(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("gate:stats:"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))
	ctx := context.Background()
	at := time.Date(2025, 3, 4, 5, 6, 0, 0, time.UTC)

	for _, allowed := range []bool{true, true, false} {
		err := s.Record(ctx, domain.StatsEvent{Key: "10.0.0.1", Limiter: "api", Route: "api", Allowed: allowed, At: at})
		if err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	if got := mr.HGet("gate:stats:total", "allowed"); got != "2" {
		t.Fatalf("expected total allowed=2, got %q", got)
	}
	if got := mr.HGet("gate:stats:total", "denied"); got != "1" {
		t.Fatalf("expected total denied=1, got %q", got)
	}
	if got := mr.HGet(s.LimiterKey("api"), "denied"); got != "1" {
		t.Fatalf("expected limiter denied=1, got %q", got)
	}
	if got := mr.HGet(s.RouteKey(), "api:allowed"); got != "2" {
		t.Fatalf("expected route allowed=2, got %q", got)
	}

	minuteKey := s.MinuteKey(at)
	if minuteKey != "gate:stats:minute:202503040506" {
		t.Fatalf("unexpected minute key %q", minuteKey)
	}
	if got := mr.HGet(minuteKey, "api:allowed"); got != "2" {
		t.Fatalf("expected minute bucket api:allowed=2, got %q", got)
	}
	if ttl := mr.TTL(minuteKey); ttl != time.Hour {
		t.Fatalf("expected minute bucket ttl=1h, got %s", ttl)
	}
	if ttl := mr.TTL(s.ClientKey("10.0.0.1")); ttl != time.Hour {
		t.Fatalf("expected key ttl=1h, got %s", ttl)
	}
}

func TestRedisStatsStore_RouteFieldsStayBounded(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsBucket("none"))
	ctx := context.Background()

	// rota é o rótulo: clientes diferentes não criam campos novos
	for i := 0; i < 50; i++ {
		_ = s.Record(ctx, domain.StatsEvent{Key: domain.Key("10.0.0." + strconv.Itoa(i)), Limiter: "api", Route: "api", Allowed: true})
	}

	fields, err := rdb.HKeys(ctx, s.RouteKey()).Result()
	if err != nil {
		t.Fatalf("hkeys: %v", err)
	}
	if len(fields) != 1 || fields[0] != "api:allowed" {
		t.Fatalf("expected a single route field, got %v", fields)
	}
	for _, k := range mr.Keys() {
		if strings.Contains(k, ":minute:") {
			t.Fatalf("expected no minute bucket with bucket=none, found %q", k)
		}
	}
}

func TestRedisStatsStore_ReturnsErrorWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb)
	mr.Close()

	if err := s.Record(context.Background(), domain.StatsEvent{Key: "k", Allowed: true}); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	if err := s.Record(context.Background(), domain.StatsEvent{}); err != nil {
		t.Fatalf("expected nil store to be a no-op, got %v", err)
	}
}

// stuckStats segura cada Record até release ser fechado, como um Redis pendurado.
type stuckStats struct {
	release chan struct{}

	mu  sync.Mutex
	got []domain.StatsEvent
}

func (s *stuckStats) Record(_ context.Context, ev domain.StatsEvent) error {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, ev)
	return nil
}

func (s *stuckStats) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestAsyncStatsStore_RecordNeverBlocks(t *testing.T) {
	dst := &stuckStats{release: make(chan struct{})}
	s := NewAsyncStatsStore(dst, WithAsyncBuffer(1))

	const n = 5
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < n; i++ {
			_ = s.Record(context.Background(), domain.StatsEvent{Limiter: "api", Allowed: true})
		}
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("Record blocked on a stuck destination")
	}

	// um evento pode estar no destino, outro no buffer; o resto é descartado
	if got := s.Dropped(); got < n-2 {
		t.Fatalf("expected at least %d dropped events, got %d", n-2, got)
	}

	close(dst.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := int64(dst.count()) + s.Dropped(); got != n {
		t.Fatalf("expected written+dropped=%d, got %d", n, got)
	}
}

func TestAsyncStatsStore_CloseFlushesBuffer(t *testing.T) {
	dst := NewMemoryStatsStore()
	s := NewAsyncStatsStore(dst)

	for i := 0; i < 3; i++ {
		_ = s.Record(context.Background(), domain.StatsEvent{Limiter: "api", Route: "api", Allowed: true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := dst.Total(); got.Allowed != 3 {
		t.Fatalf("expected 3 flushed events, got %+v", got)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

type failingStats struct{ err error }

func (f failingStats) Record(context.Context, domain.StatsEvent) error { return f.err }

func TestAsyncStatsStore_ReportsDestinationErrors(t *testing.T) {
	boom := errors.New("redis down")
	errs := make(chan error, 1)
	s := NewAsyncStatsStore(failingStats{err: boom}, WithAsyncErrorHandler(func(err error) {
		select {
		case errs <- err:
		default:
		}
	}))
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if err := s.Record(context.Background(), domain.StatsEvent{Allowed: true}); err != nil {
		t.Fatalf("Record must not surface destination errors, got %v", err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, boom) {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected error handler to be called")
	}
}
