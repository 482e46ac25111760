package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := parseLevel(tc.input); got != tc.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "text", "TEXT", "", "bogus"} {
		for _, verbose := range []bool{false, true} {
			name := fmt.Sprintf("%s/verbose=%v", format, verbose)
			t.Run(name, func(t *testing.T) {
				logger := NewLogger(format, "info", verbose)
				if logger == nil {
					t.Fatal("NewLogger returned nil")
				}
				if got := logger.Enabled(context.Background(), slog.LevelDebug); got != verbose {
					t.Errorf("debug enabled = %v, want %v", got, verbose)
				}
			})
		}
	}
}

func TestNewLoggerWithWriter_Formats(t *testing.T) {
	testCases := []struct {
		format   string
		contains []string
		json     bool
	}{
		{"json", []string{`"msg":"process_started"`, `"pid":42`}, true},
		{"text", []string{"msg=process_started", "pid=42"}, false},
		{"", []string{"msg=process_started"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf, tc.format, "info")
			logger.Info("process_started", "pid", 42)

			output := buf.String()
			for _, want := range tc.contains {
				if !strings.Contains(output, want) {
					t.Errorf("output %q missing %q", output, want)
				}
			}
			if isJSON := strings.HasPrefix(output, "{"); isJSON != tc.json {
				t.Errorf("json = %v, want %v", isJSON, tc.json)
			}
		})
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error"}

	for i, level := range levels {
		t.Run(level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf, "text", level)

			logger.Debug("at_debug")
			logger.Info("at_info")
			logger.Warn("at_warn")
			logger.Error("at_error")

			output := buf.String()
			for j, l := range levels {
				want := j >= i
				if got := strings.Contains(output, "at_"+l); got != want {
					t.Errorf("level %s: logged at_%s = %v, want %v", level, l, got, want)
				}
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled at error")
	}
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewLoggerWithWriter(&buf, "text", "info"))

	slog.Info("from_default")
	if !strings.Contains(buf.String(), "from_default") {
		t.Error("SetDefault did not set the default logger")
	}
}

// StderrHandler tests

func TestStderrHandler_HandleLine(t *testing.T) {
	var buf bytes.Buffer
	h := NewStderrHandler(NewLoggerWithWriter(&buf, "text", "debug"), true)

	h.HandleLine("test line")

	lines := h.RecentLines(1)
	if len(lines) != 1 || lines[0] != "test line" {
		t.Fatalf("RecentLines(1) = %q", lines)
	}
	if !strings.Contains(buf.String(), "child_stderr") {
		t.Errorf("verbose handler did not log: %q", buf.String())
	}
}

func TestStderrHandler_QuietSkipsDebugLines(t *testing.T) {
	var buf bytes.Buffer
	h := NewStderrHandler(NewLoggerWithWriter(&buf, "text", "debug"), false)

	h.HandleLine("loading module foo")
	if buf.Len() != 0 {
		t.Errorf("quiet handler logged a plain line: %q", buf.String())
	}

	h.HandleLine("Error: cannot open file")
	if !strings.Contains(buf.String(), "cannot open file") {
		t.Errorf("quiet handler dropped an error line: %q", buf.String())
	}

	// Both lines are buffered either way.
	if h.Total() != 2 {
		t.Errorf("Total() = %d, want 2", h.Total())
	}
}

func TestStderrHandler_Truncation(t *testing.T) {
	h := NewStderrHandler(Discard(), false)

	h.HandleLine(strings.Repeat("x", MaxLineLength+100))

	lines := h.RecentLines(1)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "...(truncated)") {
		t.Error("truncated line should end with ...(truncated)")
	}
	if len(lines[0]) != MaxLineLength+len("...(truncated)") {
		t.Errorf("len = %d", len(lines[0]))
	}
}

func TestStderrHandler_RecentLines(t *testing.T) {
	testCases := []struct {
		name    string
		written int
		request int
		want    []string
	}{
		{"empty", 0, 10, []string{}},
		{"fewer than requested", 2, 5, []string{"line0", "line1"}},
		{"last three", 5, 3, []string{"line2", "line3", "line4"}},
		{"wrapped", MaxBufferedLines + 2, 2, []string{
			fmt.Sprintf("line%d", MaxBufferedLines),
			fmt.Sprintf("line%d", MaxBufferedLines+1),
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewStderrHandler(Discard(), false)
			for i := 0; i < tc.written; i++ {
				h.HandleLine(fmt.Sprintf("line%d", i))
			}

			got := h.RecentLines(tc.request)
			if len(got) != len(tc.want) {
				t.Fatalf("RecentLines(%d) = %q, want %q", tc.request, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestStderrHandler_RecentLinesCapped(t *testing.T) {
	h := NewStderrHandler(Discard(), false)
	for i := 0; i < MaxBufferedLines+50; i++ {
		h.HandleLine("x")
	}

	if got := len(h.RecentLines(MaxBufferedLines + 10)); got != MaxBufferedLines {
		t.Errorf("got %d lines, want %d", got, MaxBufferedLines)
	}
	if h.Total() != MaxBufferedLines+50 {
		t.Errorf("Total() = %d", h.Total())
	}
}

func TestClassifyLine(t *testing.T) {
	testCases := []struct {
		line     string
		expected slog.Level
	}{
		{"[error] something failed", slog.LevelWarn},
		{"TypeError: undefined is not a function", slog.LevelWarn},
		{"Unhandled exception", slog.LevelWarn},
		{"[warning] deprecated option", slog.LevelWarn},
		{"Permission denied", slog.LevelWarn},
		{"request timed out", slog.LevelWarn},
		{"starting up", slog.LevelDebug},
		{"", slog.LevelDebug},
	}

	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			if got := classifyLine(tc.line); got != tc.expected {
				t.Errorf("classifyLine(%q) = %v, want %v", tc.line, got, tc.expected)
			}
		})
	}
}

func TestStderrHandler_CountErrors(t *testing.T) {
	h := NewStderrHandler(Discard(), false)

	h.HandleLine("Error: file not found")
	h.HandleLine("warning: slow")
	h.HandleLine("ERROR again")
	h.HandleLine("all good")

	counts := h.CountErrors()
	if counts["error"] != 2 {
		t.Errorf("error count = %d, want 2", counts["error"])
	}
	if counts["not found"] != 1 {
		t.Errorf("not found count = %d, want 1", counts["not found"])
	}
	if counts["warning"] != 1 {
		t.Errorf("warning count = %d, want 1", counts["warning"])
	}
	if _, ok := counts["timeout"]; ok {
		t.Error("timeout should not be counted")
	}
}
