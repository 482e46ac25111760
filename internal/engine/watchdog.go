package engine

import "time"

// watchdog kills the child when the execution timeout elapses first.
//
// It is armed at launch, so a run stuck in a stdio pump is bounded by the
// same deadline as one stuck waiting for exit.
type watchdog struct {
	timer *time.Timer
}

// armWatchdog starts the deadline. A zero timeout returns an inert watchdog.
func armWatchdog(timeout time.Duration, expire func()) *watchdog {
	if timeout <= 0 {
		return &watchdog{}
	}
	return &watchdog{timer: time.AfterFunc(timeout, expire)}
}

// disarm stops the timer. Safe on an inert watchdog and after expiry.
func (w *watchdog) disarm() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

// awaitExit blocks until the child has been reaped and every pump has
// drained, then maps engine-initiated kills to their errors. The timeout
// deadline itself is enforced by the timer.
func awaitExit(c *child, timeout time.Duration) error {
	<-c.done
	return stopError(c, timeout)
}

// stopError returns the abort or timeout error for a killed child, or nil.
func stopError(c *child, timeout time.Duration) error {
	switch c.stopReason() {
	case reasonAborted:
		_, _, cause := c.status()
		return abortedError(cause)
	case reasonTimedOut:
		return timeoutError(timeout)
	default:
		return nil
	}
}
