package main

import (
	"context"
	"errors"

	"github.com/randomizedcoder/go-procrun/internal/engine"
)

// Process exit statuses. A child's own non-zero exit code is passed through.
const (
	exitOK          = 0
	exitFailure     = 1   // setup failure: preflight, metrics bind, stdio files
	exitUsage       = 2   // bad flags or configuration
	exitIOError     = 74  // EX_IOERR: stdio pump failure
	exitTimedOut    = 124 // as timeout(1)
	exitCannotExec  = 126
	exitNotFound    = 127
	exitInterrupted = 130 // 128 + SIGINT
)

// exitStatus maps a run outcome to procrun's own exit status.
func exitStatus(err error) int {
	if err == nil {
		return exitOK
	}

	switch engine.Classify(err) {
	case engine.OutcomeNonZeroExit:
		code, _ := engine.Code(err)
		if code <= 0 || code > 255 {
			return exitFailure
		}
		return code
	case engine.OutcomeTimedOut:
		return exitTimedOut
	case engine.OutcomeAborted:
		return exitInterrupted
	case engine.OutcomeNotFound:
		return exitNotFound
	case engine.OutcomeStdioFailure:
		return exitIOError
	}

	// Not a run error: either interrupted between runs or a setup failure.
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	if _, ok := engine.Code(err); ok {
		return exitCannotExec
	}
	return exitFailure
}
