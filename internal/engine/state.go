package engine

// State represents the engine's view of its child process.
type State int

const (
	// StateNotStarted is the initial state before any run.
	StateNotStarted State = iota

	// StateRunning indicates a child process is live.
	StateRunning

	// StateExited indicates the last run's child has exited and was released.
	StateExited

	// StateAborted indicates the last run was killed by Abort, Close or
	// context cancellation.
	StateAborted
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsActive returns true while a child process is live.
func (s State) IsActive() bool {
	return s == StateRunning
}
