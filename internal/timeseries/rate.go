// Package timeseries tracks event rates over rolling time windows.
//
// A RateTracker counts events (stdout and stderr lines) with a lock-free
// Add and keeps one cumulative sample per RecordSample call in a ring
// buffer, from which rolling averages are computed.
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringBufferSize is the number of samples to retain (5 minutes at 4 samples/sec)
	ringBufferSize = 1200

	window1s  = 1 * time.Second
	window10s = 10 * time.Second
	window60s = 60 * time.Second
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type sample struct {
	at    time.Time
	total int64
}

// RateTracker counts events and computes rolling per-second rates.
type RateTracker struct {
	total atomic.Int64

	mu       sync.RWMutex
	samples  []sample
	writeIdx int // next write position once the ring is full
	start    time.Time
	clock    Clock
}

// RateStats contains computed rates at a point in time.
type RateStats struct {
	Total int64

	// Rolling averages, events per second.
	Rate1s  float64
	Rate10s float64
	Rate60s float64

	// RateOverall is the average since tracking started.
	RateOverall float64
}

// NewRateTracker creates a tracker with the real clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker with a custom clock for testing.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	now := clock.Now()
	t := &RateTracker{
		samples: make([]sample, 0, 64),
		start:   now,
		clock:   clock,
	}
	t.samples = append(t.samples, sample{at: now})
	return t
}

// Add counts n events. Safe to call from any goroutine.
func (t *RateTracker) Add(n int64) {
	if n > 0 {
		t.total.Add(n)
	}
}

// Count counts one event. It has the shape of a line handler.
func (t *RateTracker) Count(string) {
	t.total.Add(1)
}

// RecordSample stores the current total. Call it periodically.
func (t *RateTracker) RecordSample() {
	s := sample{at: t.clock.Now(), total: t.total.Load()}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) < ringBufferSize {
		t.samples = append(t.samples, s)
		return
	}
	t.samples[t.writeIdx] = s
	t.writeIdx = (t.writeIdx + 1) % ringBufferSize
}

// Stats computes the current rates from the recorded history.
func (t *RateTracker) Stats() RateStats {
	now := t.clock.Now()
	total := t.total.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := RateStats{Total: total}
	if elapsed := now.Sub(t.start).Seconds(); elapsed > 0 {
		stats.RateOverall = float64(total) / elapsed
	}
	stats.Rate1s = t.rateOver(now, total, window1s)
	stats.Rate10s = t.rateOver(now, total, window10s)
	stats.Rate60s = t.rateOver(now, total, window60s)
	return stats
}

// rateOver uses the newest sample at least window old, or the oldest sample
// when history is shorter than window. Must be called with mu held.
func (t *RateTracker) rateOver(now time.Time, total int64, window time.Duration) float64 {
	cutoff := now.Add(-window)

	var base *sample
	for i := range t.samples {
		s := &t.samples[i]
		if s.at.After(cutoff) {
			continue
		}
		if base == nil || s.at.After(base.at) {
			base = s
		}
	}
	if base == nil {
		base = t.oldest()
	}

	elapsed := now.Sub(base.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(total-base.total) / elapsed
}

// oldest must be called with mu held. There is always at least one sample.
func (t *RateTracker) oldest() *sample {
	if len(t.samples) < ringBufferSize {
		return &t.samples[0]
	}
	return &t.samples[t.writeIdx]
}

// Reset clears all data and restarts tracking.
func (t *RateTracker) Reset() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total.Store(0)
	t.samples = append(t.samples[:0], sample{at: now})
	t.writeIdx = 0
	t.start = now
}

// SampleCount returns the number of retained samples.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
