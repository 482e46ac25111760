package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-procrun/internal/engine"
	"github.com/randomizedcoder/go-procrun/internal/lines"
	"github.com/randomizedcoder/go-procrun/internal/stats"
)

func TestGetViewerStatus(t *testing.T) {
	tests := []struct {
		name     string
		dropRate float64
		want     ViewerStatus
	}{
		{"no drops", 0, ViewerStatusOK},
		{"tiny drops", 0.001, ViewerStatusDegraded},
		{"10% drops", 0.10, ViewerStatusDegraded},
		{"11% drops", 0.11, ViewerStatusSeverelyDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetViewerStatus(tt.dropRate); got != tt.want {
				t.Errorf("GetViewerStatus(%v) = %v, want %v", tt.dropRate, got, tt.want)
			}
		})
	}
}

func TestGetViewerLabel(t *testing.T) {
	tests := []struct {
		dropRate   float64
		wantSubstr string
	}{
		{0, "Viewer"},
		{0.05, "dropping lines"},
		{0.15, "severely degraded"},
	}

	for _, tt := range tests {
		if got := GetViewerLabel(tt.dropRate); !strings.Contains(got, tt.wantSubstr) {
			t.Errorf("GetViewerLabel(%v) = %q, want to contain %q", tt.dropRate, got, tt.wantSubstr)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"tiny", 1, "tiny"},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func tickedModel(t *testing.T, cfg Config) Model {
	t.Helper()
	m, _ := update(t, New(cfg), tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(t, m, TickMsg(time.Now()))
	return m
}

func TestView_Running(t *testing.T) {
	out := lines.NewChannel("stdout", 10, 0)
	errs := lines.NewChannel("stderr", 10, 0)
	out.FeedLine("compiling main.js")
	errs.FeedLine("warning: deprecated api")

	m := tickedModel(t, Config{
		Command:     "/usr/bin/node main.js",
		MetricsAddr: "127.0.0.1:9100",
		Status:      &mockStatus{state: engine.StateRunning, pid: 321},
		Stdout:      out,
		Stderr:      errs,
		Summary:     func() *stats.Snapshot { return &stats.Snapshot{Runs: 2} },
	})

	view := m.View()
	for _, want := range []string{
		"procrun",
		"running",
		"321",
		"$ /usr/bin/node main.js",
		"compiling main.js",
		"warning: deprecated api",
		"Runs:",
		"q: abort & quit",
		"http://127.0.0.1:9100/metrics",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q\n%s", want, view)
		}
	}
}

func TestView_StderrOnly(t *testing.T) {
	out := lines.NewChannel("stdout", 10, 0)
	errs := lines.NewChannel("stderr", 10, 0)
	out.FeedLine("normal output")
	errs.FeedLine("bad thing")

	m := tickedModel(t, Config{Stdout: out, Stderr: errs})
	m, _ = update(t, m, key("e"))

	view := m.View()
	if strings.Contains(view, "normal output") {
		t.Error("stdout should be hidden in stderr-only mode")
	}
	if !strings.Contains(view, "bad thing") || !strings.Contains(view, "stderr only") {
		t.Errorf("stderr-only view wrong:\n%s", view)
	}
}

func TestView_Empty(t *testing.T) {
	view := New(Config{}).View()
	if !strings.Contains(view, "(no output yet)") {
		t.Errorf("empty view:\n%s", view)
	}
	if !strings.Contains(view, "PID:") {
		t.Errorf("status missing:\n%s", view)
	}
}

func TestView_Done(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "Finished successfully"},
		{"timeout", &engine.RunError{Kind: engine.ErrTimedOut, Code: engine.CodeTimedOut, Message: "too slow"}, "timed_out: exit code -2: too slow"},
		{"multiline", &engine.RunError{Kind: engine.ErrNonZeroExit, Code: 1, Message: "a\nb"}, "exit code 1: a ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := update(t, New(Config{}), tea.WindowSizeMsg{Width: 120, Height: 30})
			m, _ = update(t, m, DoneMsg{Err: tt.err})

			view := m.View()
			if !strings.Contains(view, tt.want) {
				t.Errorf("view missing %q\n%s", tt.want, view)
			}
			if !strings.Contains(view, "q: quit") || strings.Contains(view, "abort") {
				t.Errorf("footer should offer plain quit once done:\n%s", view)
			}
		})
	}
}

func TestView_TinyWindow(t *testing.T) {
	out := lines.NewChannel("stdout", 10, 0)
	out.FeedLine(strings.Repeat("x", 500))

	m, _ := update(t, New(Config{Stdout: out}), tea.WindowSizeMsg{Width: 10, Height: 3})
	m, _ = update(t, m, TickMsg(time.Now()))

	// Must not panic on a window smaller than the chrome.
	_ = m.View()
}
