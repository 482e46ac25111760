package engine

import (
	"strings"
	"sync"
)

// errorLog collects every stderr line of one run, in order. Each run gets a
// fresh log, so the error log starts empty at launch.
//
// Appends come from the stderr copier goroutine. Reads for a failure report
// happen only after the child's done channel is closed, which is after the
// copier has finished.
type errorLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *errorLog) append(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

func (l *errorLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// checkExitCode fails a run with a non-zero exit code. Stderr content alone
// never fails a run.
func checkExitCode(exitCode int, errLines []string) error {
	if exitCode == 0 {
		return nil
	}
	return nonZeroExitError(exitCode, strings.Join(errLines, "\n"))
}
