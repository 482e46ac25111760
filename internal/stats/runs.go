// Package stats aggregates run results and formats the exit summary.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-procrun/internal/engine"
)

// RunSummary aggregates results across runs. Safe for concurrent use.
type RunSummary struct {
	mu sync.Mutex

	started time.Time

	runs      int64
	launched  int64
	outcomes  map[engine.Outcome]int64
	exitCodes map[int]int64
	bytesIn   int64
	bytesOut  int64

	// Run durations of launched children, in nanoseconds.
	durationDigest *tdigest.TDigest // not thread-safe, guarded by mu
	durationSum    int64
	durationMin    int64 // -1 = unset
	durationMax    int64

	lastErr error
}

// NewRunSummary creates an empty summary.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		started:        time.Now(),
		outcomes:       make(map[engine.Outcome]int64),
		exitCodes:      make(map[int]int64),
		durationDigest: tdigest.NewWithCompression(100),
		durationMin:    -1,
	}
}

// Record adds one result.
func (s *RunSummary) Record(res engine.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	s.outcomes[res.Outcome()]++
	if res.Err != nil {
		s.lastErr = res.Err
	}

	if !res.Started {
		return
	}

	s.launched++
	s.exitCodes[res.ExitCode]++
	s.bytesIn += res.BytesIn
	s.bytesOut += res.BytesOut

	ns := res.Duration.Nanoseconds()
	s.durationDigest.Add(float64(ns), 1)
	s.durationSum += ns
	if s.durationMin < 0 || ns < s.durationMin {
		s.durationMin = ns
	}
	if ns > s.durationMax {
		s.durationMax = ns
	}
}

// Snapshot is a point-in-time copy of a RunSummary.
type Snapshot struct {
	Elapsed time.Duration

	Runs      int64
	Launched  int64
	Outcomes  map[engine.Outcome]int64
	ExitCodes map[int]int64
	BytesIn   int64
	BytesOut  int64

	DurationMin  time.Duration
	DurationMax  time.Duration
	DurationMean time.Duration
	DurationP50  time.Duration
	DurationP95  time.Duration
	DurationP99  time.Duration

	LastErr error
}

// Failed returns the number of runs that did not succeed.
func (s *Snapshot) Failed() int64 {
	return s.Runs - s.Outcomes[engine.OutcomeSuccess]
}

// Snapshot copies the current aggregates.
func (s *RunSummary) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		Elapsed:   time.Since(s.started),
		Runs:      s.runs,
		Launched:  s.launched,
		Outcomes:  make(map[engine.Outcome]int64, len(s.outcomes)),
		ExitCodes: make(map[int]int64, len(s.exitCodes)),
		BytesIn:   s.bytesIn,
		BytesOut:  s.bytesOut,
		LastErr:   s.lastErr,
	}
	for k, v := range s.outcomes {
		snap.Outcomes[k] = v
	}
	for k, v := range s.exitCodes {
		snap.ExitCodes[k] = v
	}

	if s.launched > 0 {
		snap.DurationMin = time.Duration(s.durationMin)
		snap.DurationMax = time.Duration(s.durationMax)
		snap.DurationMean = time.Duration(s.durationSum / s.launched)
		snap.DurationP50 = time.Duration(s.durationDigest.Quantile(0.50))
		snap.DurationP95 = time.Duration(s.durationDigest.Quantile(0.95))
		snap.DurationP99 = time.Duration(s.durationDigest.Quantile(0.99))
	}

	return snap
}
