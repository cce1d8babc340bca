package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"request-gate/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	res   domain.Result
	calls []domain.Key
}

func (f *fakeLimiter) Check(k domain.Key) domain.Result {
	f.calls = append(f.calls, k)
	return f.res
}

func (f *fakeLimiter) Limit() int { return f.res.Limit }

type recordingStats struct {
	events []domain.StatsEvent
	err    error
}

func (s *recordingStats) Record(_ context.Context, ev domain.StatsEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestService_Decide_AllowsWhenNoLimiter(t *testing.T) {
	svc := Service{}
	if res := svc.Decide(context.Background(), "k", "page"); !res.Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestService_Decide_ReturnsLimiterResult(t *testing.T) {
	reset := time.Unix(1700000000, 0)
	lim := &fakeLimiter{res: domain.Result{Allowed: false, Limit: 5, Remaining: 0, ResetAt: reset}}
	svc := Service{Limiter: lim}

	res := svc.Decide(context.Background(), "1.2.3.4", "auth_api")
	if res.Allowed {
		t.Fatalf("expected blocked")
	}
	if res.Limit != 5 || !res.ResetAt.Equal(reset) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(lim.calls) != 1 || lim.calls[0] != "1.2.3.4" {
		t.Fatalf("expected limiter called once with key, got %v", lim.calls)
	}
}

func TestService_Decide_RecordsStats(t *testing.T) {
	at := time.Unix(1700000000, 0)
	stats := &recordingStats{}
	svc := Service{
		Limiter: &fakeLimiter{res: domain.Result{Allowed: true, Limit: 100, Remaining: 99}},
		Stats:   stats,
		Name:    "api",
		Now:     func() time.Time { return at },
	}

	svc.Decide(context.Background(), "k", "api")

	if len(stats.events) != 1 {
		t.Fatalf("expected one stats event, got %d", len(stats.events))
	}
	ev := stats.events[0]
	if ev.Limiter != "api" || !ev.Allowed || ev.Remaining != 99 || ev.Route != "api" || !ev.At.Equal(at) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestService_Decide_IgnoresStatsErrors(t *testing.T) {
	svc := Service{
		Limiter: &fakeLimiter{res: domain.Result{Allowed: true, Limit: 1}},
		Stats:   &recordingStats{err: errors.New("redis down")},
	}
	if res := svc.Decide(context.Background(), "k", "page"); !res.Allowed {
		t.Fatalf("stats failure must not change the decision")
	}
}
