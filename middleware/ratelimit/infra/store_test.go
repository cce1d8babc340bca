package infra

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"request-gate/middleware/ratelimit/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestWindow(t *testing.T, max int, window time.Duration, clock *fakeClock) *FixedWindow {
	t.Helper()
	s, err := NewFixedWindow(domain.Config{Name: "test", Window: window, MaxRequests: max}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create fixed window: %v", err)
	}
	return s
}

func TestNewFixedWindow_RejectsZeroMaxRequests(t *testing.T) {
	_, err := NewFixedWindow(domain.Config{Window: time.Second, MaxRequests: 0})
	if !errors.Is(err, domain.ErrInvalidMaxRequests) {
		t.Fatalf("expected ErrInvalidMaxRequests, got %v", err)
	}
}

func TestFixedWindow_AllowsUpToMaxThenDenies(t *testing.T) {
	clock := newFakeClock()
	s := newTestWindow(t, 5, time.Second, clock)

	for i, want := range []int{4, 3, 2, 1, 0} {
		res := s.Check("x")
		if !res.Allowed {
			t.Fatalf("expected call %d to be allowed", i+1)
		}
		if res.Remaining != want {
			t.Fatalf("call %d: expected remaining=%d, got %d", i+1, want, res.Remaining)
		}
		if res.Limit != 5 {
			t.Fatalf("call %d: expected limit=5, got %d", i+1, res.Limit)
		}
	}

	res := s.Check("x")
	if res.Allowed {
		t.Fatalf("expected 6th call to be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("expected remaining=0 on denial, got %d", res.Remaining)
	}
}

func TestFixedWindow_ResetAtIsWindowAfterFirstRequest(t *testing.T) {
	clock := newFakeClock()
	s := newTestWindow(t, 2, time.Minute, clock)

	start := clock.Now()
	first := s.Check("k")
	clock.Advance(10 * time.Second)
	second := s.Check("k")

	want := start.Add(time.Minute)
	if !first.ResetAt.Equal(want) || !second.ResetAt.Equal(want) {
		t.Fatalf("expected ResetAt=%s for both, got %s and %s", want, first.ResetAt, second.ResetAt)
	}
}

func TestFixedWindow_DenialIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	s := newTestWindow(t, 1, time.Second, clock)

	s.Check("k")
	firstDenial := s.Check("k")
	for i := 0; i < 10; i++ {
		clock.Advance(10 * time.Millisecond)
		res := s.Check("k")
		if res.Allowed {
			t.Fatalf("expected denial %d", i)
		}
		if res != firstDenial {
			t.Fatalf("denial changed: first=%+v now=%+v", firstDenial, res)
		}
	}
}

func TestFixedWindow_FreshWindowAfterReset(t *testing.T) {
	clock := newFakeClock()
	s := newTestWindow(t, 2, time.Second, clock)

	s.Check("k")
	s.Check("k")
	if s.Check("k").Allowed {
		t.Fatalf("expected denial inside the window")
	}

	// no próprio ResetAt a janela ainda vale
	clock.Advance(time.Second)
	if s.Check("k").Allowed {
		t.Fatalf("expected denial exactly at ResetAt")
	}

	clock.Advance(time.Millisecond)
	res := s.Check("k")
	if !res.Allowed {
		t.Fatalf("expected request after reset to be allowed")
	}
	if res.Remaining != 1 {
		t.Fatalf("expected fresh count (remaining=1), got %d", res.Remaining)
	}
}

func TestFixedWindow_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	s := newTestWindow(t, 1, time.Second, clock)

	if !s.Check("a").Allowed {
		t.Fatalf("expected a to be allowed")
	}
	if s.Check("a").Allowed {
		t.Fatalf("expected a to be denied")
	}
	res := s.Check("b")
	if !res.Allowed || res.Remaining != 0 {
		t.Fatalf("expected b untouched by a, got %+v", res)
	}
}

func TestFixedWindow_InstancesDoNotShareState(t *testing.T) {
	clock := newFakeClock()
	api := newTestWindow(t, 1, time.Second, clock)
	auth := newTestWindow(t, 1, time.Second, clock)

	api.Check("k")
	if !auth.Check("k").Allowed {
		t.Fatalf("expected second instance to have its own counters")
	}
}

func TestFixedWindow_PurgesExpiredRecordsOnCheck(t *testing.T) {
	clock := newFakeClock()
	s := newTestWindow(t, 3, time.Second, clock)

	s.Check("a")
	s.Check("b")
	s.Check("c")
	if got := s.Len(); got != 3 {
		t.Fatalf("expected 3 tracked keys, got %d", got)
	}

	clock.Advance(2 * time.Second)
	s.Check("d")
	if got := s.Len(); got != 1 {
		t.Fatalf("expected expired keys to be purged, got %d tracked", got)
	}
}

func TestFixedWindow_ConcurrentChecksNeverOverAdmit(t *testing.T) {
	clock := newFakeClock()
	s := newTestWindow(t, 50, time.Hour, clock)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Check("shared").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Fatalf("expected exactly 50 allowed, got %d", got)
	}
}

func TestFixedWindow_ConfigReportsLimits(t *testing.T) {
	lim, err := NewFixedWindow(domain.AuthPreset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := lim.Config(); got != domain.AuthPreset {
		t.Fatalf("expected %+v, got %+v", domain.AuthPreset, got)
	}
	if lim.Limit() != domain.AuthPreset.MaxRequests {
		t.Fatalf("expected Limit to match config")
	}
}
