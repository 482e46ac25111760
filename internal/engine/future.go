package engine

import (
	"context"
	"sync"
)

// Future is the pending outcome of RunAsync.
type Future struct {
	runID string
	done  chan struct{}

	mu      sync.Mutex
	settled bool
	err     error
	hooks   []func(error)
}

func newFuture(runID string) *Future {
	return &Future{runID: runID, done: make(chan struct{})}
}

// complete settles the future. Only the first call has an effect. Hooks run
// before Done is closed.
func (f *Future) complete(err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.err = err
	hooks := f.hooks
	f.hooks = nil
	f.mu.Unlock()

	for _, fn := range hooks {
		fn(err)
	}
	close(f.done)
	return true
}

// OnDone registers fn to run with the outcome once the run has completed,
// before Done is closed. If the future has already settled fn runs
// immediately on the calling goroutine.
func (f *Future) OnDone(fn func(err error)) {
	f.mu.Lock()
	if !f.settled {
		f.hooks = append(f.hooks, fn)
		f.mu.Unlock()
		return
	}
	err := f.err
	f.mu.Unlock()
	fn(err)
}

// Done is closed once the run has completed and been finalized.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the run outcome. It is nil until Done is closed, and nil
// afterwards on success.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the run completes or ctx is done. Cancelling ctx only
// stops waiting; use Engine.Abort to stop the child.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunID returns the id of the run behind this future.
func (f *Future) RunID() string {
	return f.runID
}
