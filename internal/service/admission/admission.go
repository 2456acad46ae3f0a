// Package admission implements per-requester sliding-window rate admission
// with a burst allowance.
package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	window       = 60 * time.Second
	pollInterval = 500 * time.Millisecond
)

// Config holds admission control configuration.
type Config struct {
	RequestsPerMinute int
	Burst             int
	CleanupInterval   time.Duration // how often idle windows are dropped
}

// DefaultConfig returns the default admission configuration.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerMinute: 30,
		Burst:             5,
		CleanupInterval:   10 * time.Minute,
	}
}

// Stats reports a requester's current window usage.
type Stats struct {
	RequestsLastMinute int
	Limit              int
	NextResetIn        time.Duration
}

// Limiter gates requests per requester over a trailing 60 second window.
// All window mutation happens under a single mutex so concurrent checks
// cannot lose appends.
type Limiter struct {
	config  *Config
	mu      sync.Mutex
	windows map[int64][]time.Time
	stopCh  chan struct{}
	now     func() time.Time
}

// New creates a Limiter with the given configuration.
func New(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RequestsPerMinute < 1 {
		config.RequestsPerMinute = 1
	}
	if config.Burst < 0 {
		config.Burst = 0
	}

	l := &Limiter{
		config:  config,
		windows: make(map[int64][]time.Time),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	if config.CleanupInterval > 0 {
		go l.cleanupLoop()
	}

	return l
}

// Stop stops the limiter's cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stopCh)
}

// Allow reports whether the requester may proceed right now. A positive
// answer records the request in the window; a denial has no side effect
// beyond pruning.
func (l *Limiter) Allow(requesterID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	reqs := l.prune(requesterID, now)

	if len(reqs) >= l.config.RequestsPerMinute {
		return false
	}

	// Burst fast-path: the first few requests go through immediately.
	if len(reqs) < l.config.Burst {
		l.windows[requesterID] = append(reqs, now)
		return true
	}

	// An empty window has no spacing requirement.
	if len(reqs) == 0 {
		l.windows[requesterID] = append(reqs, now)
		return true
	}

	// Past the burst, enforce minimum spacing against the oldest entry.
	elapsed := now.Sub(reqs[0])
	interval := window / time.Duration(l.config.RequestsPerMinute)
	required := interval * time.Duration(len(reqs))
	if elapsed < required {
		return false
	}

	l.windows[requesterID] = append(reqs, now)
	return true
}

// Wait retries Allow on a fixed poll interval until admitted, maxWait has
// elapsed, or ctx is canceled. It returns false on timeout or cancellation.
func (l *Limiter) Wait(ctx context.Context, requesterID int64, maxWait time.Duration) bool {
	deadline := l.now().Add(maxWait)

	for !l.Allow(requesterID) {
		if l.now().After(deadline) {
			return false
		}
		t := time.NewTimer(pollInterval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return false
		}
	}
	return true
}

// UsageStats returns the requester's current rate-limit usage.
func (l *Limiter) UsageStats(requesterID int64) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	reqs := l.prune(requesterID, now)

	s := Stats{
		RequestsLastMinute: len(reqs),
		Limit:              l.config.RequestsPerMinute,
	}
	if len(reqs) > 0 {
		s.NextResetIn = window - now.Sub(reqs[0])
	}
	return s
}

// RequesterCount returns the number of tracked requesters.
func (l *Limiter) RequesterCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// prune drops entries older than the window. Caller must hold l.mu.
func (l *Limiter) prune(requesterID int64, now time.Time) []time.Time {
	reqs := l.windows[requesterID]
	kept := reqs[:0]
	for _, t := range reqs {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.windows, requesterID)
		return nil
	}
	l.windows[requesterID] = kept
	return kept
}

// cleanupLoop periodically drops requesters whose windows have gone idle.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	deleted := 0
	for id := range l.windows {
		if l.prune(id, now) == nil {
			deleted++
		}
	}

	if deleted > 0 {
		slog.Debug("Admission cleanup",
			"deleted", deleted,
			"remaining", len(l.windows),
		)
	}
}
