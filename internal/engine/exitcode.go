package engine

import (
	"os"
	"syscall"
)

// extractExitCode derives the exit code from a finished command.
// A signal exit maps to 128 + signal number, like a shell does.
func extractExitCode(state *os.ProcessState, err error) int {
	if state == nil {
		if err == nil {
			return 0
		}
		// Never reaped, assume failure.
		return 1
	}

	if status, ok := state.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return 128 + int(status.Signal())
		}
		return status.ExitStatus()
	}

	return state.ExitCode()
}
