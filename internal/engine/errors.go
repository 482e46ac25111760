package engine

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every failed run returns a *RunError that matches exactly one
// of these with errors.Is.
var (
	ErrExecutableNotFound = errors.New("executable not found")
	ErrLaunchFailure      = errors.New("launch failure")
	ErrNonZeroExit        = errors.New("non-zero exit")
	ErrAborted            = errors.New("aborted")
	ErrTimedOut           = errors.New("timed out")
	ErrStdioFailure       = errors.New("stdio failure")
)

// ErrNotRunning is returned by operations that need a live child.
var ErrNotRunning = errors.New("process is not running")

// Reserved codes. Non-zero exits carry the child's own exit code instead.
const (
	CodeAborted            = -1
	CodeTimedOut           = -2
	CodeLaunchFailure      = -3
	CodeExecutableNotFound = -4
	CodeStdioFailure       = -5
)

// RunError is the single structured failure surfaced by a run.
type RunError struct {
	Kind    error // one of the Err* kinds above
	Code    int
	Message string
	Err     error // underlying cause, may be nil
}

func (e *RunError) Error() string {
	return fmt.Sprintf("exit code %d: %s", e.Code, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *RunError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Code extracts the run error code from err.
// Returns (0, false) if err is not a *RunError.
func Code(err error) (int, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}

func notFoundError(path string, cause error) *RunError {
	return &RunError{
		Kind:    ErrExecutableNotFound,
		Code:    CodeExecutableNotFound,
		Message: "cannot find executable: " + path,
		Err:     cause,
	}
}

func launchError(cause error) *RunError {
	return &RunError{
		Kind:    ErrLaunchFailure,
		Code:    CodeLaunchFailure,
		Message: "cannot execute process: " + cause.Error(),
		Err:     cause,
	}
}

func nonZeroExitError(code int, message string) *RunError {
	return &RunError{
		Kind:    ErrNonZeroExit,
		Code:    code,
		Message: message,
	}
}

func abortedError(cause error) *RunError {
	return &RunError{
		Kind:    ErrAborted,
		Code:    CodeAborted,
		Message: "process was aborted",
		Err:     cause,
	}
}

func timeoutError(timeout time.Duration) *RunError {
	return &RunError{
		Kind:    ErrTimedOut,
		Code:    CodeTimedOut,
		Message: fmt.Sprintf("process exceeded execution timeout (%s) and was aborted", timeout),
	}
}

func stdioError(cause error) *RunError {
	return &RunError{
		Kind:    ErrStdioFailure,
		Code:    CodeStdioFailure,
		Message: cause.Error(),
		Err:     cause,
	}
}

// Outcome is a low-cardinality label for a run result.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeNonZeroExit   Outcome = "nonzero_exit"
	OutcomeAborted       Outcome = "aborted"
	OutcomeTimedOut      Outcome = "timed_out"
	OutcomeLaunchFailure Outcome = "launch_failure"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeStdioFailure  Outcome = "stdio_failure"
)

// Classify maps a run error to its Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrAborted):
		return OutcomeAborted
	case errors.Is(err, ErrTimedOut):
		return OutcomeTimedOut
	case errors.Is(err, ErrExecutableNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrStdioFailure):
		return OutcomeStdioFailure
	case errors.Is(err, ErrNonZeroExit):
		return OutcomeNonZeroExit
	default:
		return OutcomeLaunchFailure
	}
}

// Outcomes lists every Outcome, for pre-initialising label sets.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeSuccess,
		OutcomeNonZeroExit,
		OutcomeAborted,
		OutcomeTimedOut,
		OutcomeLaunchFailure,
		OutcomeNotFound,
		OutcomeStdioFailure,
	}
}

// Result summarises one run for callbacks and statistics.
type Result struct {
	RunID    string
	Started  bool
	PID      int
	ExitCode int
	Duration time.Duration
	BytesIn  int64 // bytes pumped to child stdin
	BytesOut int64 // bytes read from child stdout
	Err      error
}

// Outcome classifies r.Err.
func (r Result) Outcome() Outcome {
	return Classify(r.Err)
}
