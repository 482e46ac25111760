package orchestrator

import (
	"context"
	"math/rand"
	"time"
)

// Pacer spaces out repeated runs. Each run waits a fixed interval plus a
// per-run jitter, so repeated invocations of an external tool do not hit
// shared resources in lockstep.
type Pacer struct {
	interval  time.Duration
	maxJitter time.Duration
	seed      int64
}

// NewPacer creates a pacer seeded from the current time.
func NewPacer(interval, maxJitter time.Duration) *Pacer {
	return NewPacerWithSeed(interval, maxJitter, time.Now().UnixNano())
}

// NewPacerWithSeed creates a pacer with a specific seed for reproducibility.
func NewPacerWithSeed(interval, maxJitter time.Duration, seed int64) *Pacer {
	return &Pacer{
		interval:  interval,
		maxJitter: maxJitter,
		seed:      seed,
	}
}

// Delay returns how long run N waits before starting. Run 0 never waits.
// The same seed and run always give the same delay.
func (p *Pacer) Delay(run int) time.Duration {
	if run <= 0 {
		return 0
	}
	return p.interval + p.jitter(run)
}

func (p *Pacer) jitter(run int) time.Duration {
	if p.maxJitter <= 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(int64(run) ^ p.seed))
	return time.Duration(rng.Int63n(int64(p.maxJitter)))
}

// Wait blocks for Delay(run).
// Returns nil on success, or the context error if cancelled.
func (p *Pacer) Wait(ctx context.Context, run int) error {
	d := p.Delay(run)
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EstimatedPause returns the expected total pause across runs runs.
func (p *Pacer) EstimatedPause(runs int) time.Duration {
	if runs <= 1 {
		return 0
	}
	return time.Duration(runs-1) * (p.interval + p.maxJitter/2)
}
