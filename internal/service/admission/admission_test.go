package admission

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(rpm, burst int) (*Limiter, *time.Time) {
	l := New(&Config{RequestsPerMinute: rpm, Burst: burst})
	current := time.Now()
	l.now = func() time.Time { return current }
	return l, &current
}

func TestAllowBurstFastPath(t *testing.T) {
	l, _ := newTestLimiter(30, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow(1) {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}

	// Sixth request in the same instant is past the burst and has no
	// spacing credit yet.
	if l.Allow(1) {
		t.Fatal("request past burst with zero elapsed time should be denied")
	}
}

func TestAllowSpacingPastBurst(t *testing.T) {
	l, clock := newTestLimiter(30, 1)

	if !l.Allow(1) {
		t.Fatal("first request should be allowed")
	}

	// 30 rpm means one request per 2 seconds past the burst.
	if l.Allow(1) {
		t.Fatal("second immediate request should be denied")
	}

	*clock = clock.Add(2 * time.Second)
	if !l.Allow(1) {
		t.Fatal("request after spacing interval should be allowed")
	}

	// Third request needs 2 entries * 2s = 4s elapsed from the oldest.
	*clock = clock.Add(1 * time.Second)
	if l.Allow(1) {
		t.Fatal("request before cumulative spacing should be denied")
	}
	*clock = clock.Add(1 * time.Second)
	if !l.Allow(1) {
		t.Fatal("request at cumulative spacing should be allowed")
	}
}

func TestAllowZeroBurst(t *testing.T) {
	l, clock := newTestLimiter(30, 0)

	// With no burst allowance, an empty window still admits immediately.
	if !l.Allow(1) {
		t.Fatal("fresh requester should be allowed with zero burst")
	}

	// Subsequent requests fall straight into spacing enforcement.
	if l.Allow(1) {
		t.Fatal("second immediate request should be denied with zero burst")
	}
	*clock = clock.Add(2 * time.Second)
	if !l.Allow(1) {
		t.Fatal("request after spacing interval should be allowed")
	}

	// Once the window drains, the zero-friction path applies again.
	*clock = clock.Add(61 * time.Second)
	if !l.Allow(1) {
		t.Fatal("requester with an expired window should be allowed")
	}
}

func TestAllowCeiling(t *testing.T) {
	l, _ := newTestLimiter(5, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow(7) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(7) {
		t.Fatal("request past the per-minute ceiling should be denied")
	}
}

func TestWindowExpiry(t *testing.T) {
	l, clock := newTestLimiter(5, 5)

	for i := 0; i < 5; i++ {
		l.Allow(1)
	}
	if l.Allow(1) {
		t.Fatal("should be at the ceiling")
	}

	*clock = clock.Add(61 * time.Second)
	if !l.Allow(1) {
		t.Fatal("request after window expiry should be allowed")
	}

	stats := l.UsageStats(1)
	if stats.RequestsLastMinute != 1 {
		t.Fatalf("expected 1 request in window after expiry, got %d", stats.RequestsLastMinute)
	}
}

func TestRequestersIndependent(t *testing.T) {
	l, _ := newTestLimiter(5, 5)

	for i := 0; i < 5; i++ {
		l.Allow(1)
	}
	if l.Allow(1) {
		t.Fatal("requester 1 should be at the ceiling")
	}
	if !l.Allow(2) {
		t.Fatal("requester 2 should be unaffected by requester 1's usage")
	}
}

func TestUsageStats(t *testing.T) {
	l, clock := newTestLimiter(30, 5)

	stats := l.UsageStats(1)
	if stats.RequestsLastMinute != 0 || stats.Limit != 30 || stats.NextResetIn != 0 {
		t.Fatalf("unexpected stats for idle requester: %+v", stats)
	}

	l.Allow(1)
	l.Allow(1)
	*clock = clock.Add(10 * time.Second)

	stats = l.UsageStats(1)
	if stats.RequestsLastMinute != 2 {
		t.Fatalf("expected 2 requests, got %d", stats.RequestsLastMinute)
	}
	if stats.NextResetIn != 50*time.Second {
		t.Fatalf("expected 50s until reset, got %v", stats.NextResetIn)
	}
}

func TestWaitAdmitsImmediately(t *testing.T) {
	l := New(&Config{RequestsPerMinute: 30, Burst: 5})
	defer l.Stop()

	if !l.Wait(context.Background(), 1, time.Second) {
		t.Fatal("Wait should admit immediately under the burst")
	}
}

func TestWaitTimesOut(t *testing.T) {
	l := New(&Config{RequestsPerMinute: 1, Burst: 1})
	defer l.Stop()

	if !l.Allow(1) {
		t.Fatal("first request should be allowed")
	}
	if l.Wait(context.Background(), 1, 100*time.Millisecond) {
		t.Fatal("Wait should time out while the requester is saturated")
	}
}

func TestWaitCanceled(t *testing.T) {
	l := New(&Config{RequestsPerMinute: 1, Burst: 1})
	defer l.Stop()

	l.Allow(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool, 1)
	go func() { done <- l.Wait(ctx, 1, time.Minute) }()

	select {
	case admitted := <-done:
		if admitted {
			t.Fatal("canceled Wait should report false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not observe context cancellation")
	}
}

func TestConcurrentAllow(t *testing.T) {
	l, _ := newTestLimiter(10, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(1) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 10 {
		t.Fatalf("expected exactly 10 admissions under contention, got %d", admitted)
	}
}

func TestPruneDropsIdleRequesters(t *testing.T) {
	l, clock := newTestLimiter(30, 5)

	l.Allow(1)
	l.Allow(2)
	if n := l.RequesterCount(); n != 2 {
		t.Fatalf("expected 2 tracked requesters, got %d", n)
	}

	*clock = clock.Add(2 * time.Minute)
	l.cleanup()

	if n := l.RequesterCount(); n != 0 {
		t.Fatalf("expected idle windows to be dropped, got %d", n)
	}
}
