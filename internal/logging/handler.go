package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the longest stderr line kept before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is how many recent stderr lines are kept.
	MaxBufferedLines = 100
)

// StderrHandler logs a child's stderr lines and keeps the most recent ones
// for the exit summary. HandleLine matches lines.Handler, so it can be
// subscribed to Engine.ErrorReceived directly.
type StderrHandler struct {
	logger  *slog.Logger
	verbose bool

	mu     sync.Mutex
	buffer []string // ring
	bufIdx int
	total  int
}

// NewStderrHandler creates a stderr handler. In non-verbose mode only lines
// that look like warnings or errors are logged; all lines are buffered.
func NewStderrHandler(logger *slog.Logger, verbose bool) *StderrHandler {
	return &StderrHandler{
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleLine processes one stderr line.
func (h *StderrHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.total++
	h.mu.Unlock()

	level := classifyLine(line)
	if !h.verbose && level == slog.LevelDebug {
		return
	}
	h.logger.Log(context.Background(), level, "child_stderr", "line", line)
}

// classifyLine picks a log level from the line's content.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "[error]"),
		strings.Contains(lower, "error"),
		strings.Contains(lower, "exception"),
		strings.Contains(lower, "fatal"),
		strings.Contains(lower, "panic"):
		return slog.LevelWarn
	case strings.Contains(lower, "[warning]"),
		strings.Contains(lower, "warn"),
		strings.Contains(lower, "denied"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"):
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *StderrHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}
	if n > h.total {
		n = h.total
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}
	return lines
}

// Total returns how many lines were handled, including ones no longer
// buffered.
func (h *StderrHandler) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// ErrorPatterns are the substrings counted for the exit summary.
var ErrorPatterns = []string{
	"error",
	"exception",
	"warning",
	"timeout",
	"not found",
	"permission denied",
}

// CountErrors counts buffered lines containing each pattern, ignoring case.
func (h *StderrHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, pattern := range ErrorPatterns {
			if strings.Contains(lower, pattern) {
				counts[pattern]++
			}
		}
	}
	return counts
}
