package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-procrun/internal/engine"
	"github.com/randomizedcoder/go-procrun/internal/lines"
	"github.com/randomizedcoder/go-procrun/internal/stats"
	"github.com/randomizedcoder/go-procrun/internal/timeseries"
)

// =============================================================================
// Mock Status
// =============================================================================

type mockStatus struct {
	state engine.State
	pid   int
}

func (m *mockStatus) State() engine.State { return m.state }
func (m *mockStatus) PID() int            { return m.pid }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// =============================================================================
// Tests: New / Init
// =============================================================================

func TestNew(t *testing.T) {
	model := New(Config{Command: "node build.js", MetricsAddr: "localhost:9100"})

	if model.command != "node build.js" {
		t.Errorf("command = %q", model.command)
	}
	if model.metricsAddr != "localhost:9100" {
		t.Errorf("metricsAddr = %q", model.metricsAddr)
	}
	if model.maxLines != defaultMaxLines {
		t.Errorf("maxLines = %d, want %d", model.maxLines, defaultMaxLines)
	}
	if model.width != 80 || model.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", model.width, model.height)
	}
}

func TestModel_Init(t *testing.T) {
	if cmd := New(Config{}).Init(); cmd == nil {
		t.Error("Init() returned nil cmd")
	}
}

// =============================================================================
// Tests: Update - Key Messages
// =============================================================================

func TestModel_Update_QuitKeys(t *testing.T) {
	tests := []struct {
		key      string
		wantQuit bool
	}{
		{"q", true},
		{"ctrl+c", true},
		{"esc", true},
		{"e", false},
		{"c", false},
		{"x", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			aborted := 0
			model := New(Config{OnQuit: func() { aborted++ }})

			m, cmd := update(t, model, key(tt.key))

			if m.quitting != tt.wantQuit {
				t.Errorf("quitting = %v, want %v", m.quitting, tt.wantQuit)
			}
			if tt.wantQuit && cmd == nil {
				t.Error("expected tea.Quit cmd")
			}
			if want := map[bool]int{true: 1, false: 0}[tt.wantQuit]; aborted != want {
				t.Errorf("OnQuit called %d times, want %d", aborted, want)
			}
		})
	}
}

func TestModel_Update_QuitAfterDoneDoesNotAbort(t *testing.T) {
	aborted := false
	model := New(Config{OnQuit: func() { aborted = true }})

	m, _ := update(t, model, DoneMsg{})
	m, cmd := update(t, m, key("q"))

	if aborted {
		t.Error("OnQuit should not be called once runs are done")
	}
	if !m.quitting || cmd == nil {
		t.Error("q should still quit")
	}
}

func TestModel_Update_ToggleStderrOnly(t *testing.T) {
	model := New(Config{})

	m, _ := update(t, model, key("e"))
	if !m.stderrOnly {
		t.Error("stderrOnly should be true after pressing 'e'")
	}

	m, _ = update(t, m, key("e"))
	if m.stderrOnly {
		t.Error("stderrOnly should be false after pressing 'e' again")
	}
}

func TestModel_Update_Clear(t *testing.T) {
	out := lines.NewChannel("stdout", 10, 0)
	out.FeedLine("a")
	model := New(Config{Stdout: out})

	m, _ := update(t, model, TickMsg(time.Now()))
	if len(m.buf) != 1 {
		t.Fatalf("buf = %v, want one line", m.buf)
	}

	m, _ = update(t, m, key("c"))
	if len(m.buf) != 0 {
		t.Errorf("buf not cleared: %v", m.buf)
	}
	if so, _ := m.LineCounts(); so != 1 {
		t.Errorf("clear should keep counts, stdout = %d", so)
	}
}

// =============================================================================
// Tests: Update - Window Size
// =============================================================================

func TestModel_Update_WindowSize(t *testing.T) {
	m, _ := update(t, New(Config{}), tea.WindowSizeMsg{Width: 120, Height: 40})

	if m.width != 120 {
		t.Errorf("width = %d, want 120", m.width)
	}
	if m.height != 40 {
		t.Errorf("height = %d, want 40", m.height)
	}
}

// =============================================================================
// Tests: Update - Tick
// =============================================================================

func TestModel_Update_Tick(t *testing.T) {
	out := lines.NewChannel("stdout", 10, 0)
	errs := lines.NewChannel("stderr", 10, 0)
	out.FeedLine("one")
	errs.FeedLine("oops")
	out.FeedLine("two")

	status := &mockStatus{state: engine.StateRunning, pid: 4242}
	snap := &stats.Snapshot{Runs: 3}

	model := New(Config{
		Status:  status,
		Stdout:  out,
		Stderr:  errs,
		Summary: func() *stats.Snapshot { return snap },
	})

	m, cmd := update(t, model, TickMsg(time.Now()))

	if cmd == nil {
		t.Error("expected tick cmd to be returned")
	}
	if m.state != engine.StateRunning || m.pid != 4242 {
		t.Errorf("state/pid = %v/%d", m.state, m.pid)
	}
	if m.snap != snap {
		t.Error("snapshot not polled")
	}

	so, se := m.LineCounts()
	if so != 2 || se != 1 {
		t.Errorf("LineCounts = %d/%d, want 2/1", so, se)
	}

	var stdout []string
	for _, e := range m.buf {
		if !e.stderr {
			stdout = append(stdout, e.text)
		}
	}
	if strings.Join(stdout, ",") != "one,two" {
		t.Errorf("stdout order = %v", stdout)
	}
}

func TestModel_Update_TickSamplesRate(t *testing.T) {
	rate := timeseries.NewRateTracker()
	rate.Add(5)

	m, _ := update(t, New(Config{Rate: rate}), TickMsg(time.Now()))

	if m.rates == nil || m.rates.Total != 5 {
		t.Fatalf("rates = %+v, want Total 5", m.rates)
	}
	if rate.SampleCount() != 2 {
		t.Errorf("SampleCount = %d, want a sample per tick", rate.SampleCount())
	}
	if !strings.Contains(m.View(), "Lines/s:") {
		t.Error("view should show the line rate")
	}
}

func TestModel_Update_TickClosedChannels(t *testing.T) {
	out := lines.NewChannel("stdout", 10, 0)
	out.FeedLine("last")
	out.Close()

	m, _ := update(t, New(Config{Stdout: out}), TickMsg(time.Now()))
	m, _ = update(t, m, TickMsg(time.Now()))

	if so, _ := m.LineCounts(); so != 1 {
		t.Errorf("stdout lines = %d, want 1", so)
	}
}

func TestModel_Scrollback_Bounded(t *testing.T) {
	out := lines.NewChannel("stdout", 100, 0)
	for i := 0; i < 50; i++ {
		out.FeedLine(fmt.Sprintf("line %d", i))
	}

	m, _ := update(t, New(Config{Stdout: out, MaxLines: 10}), TickMsg(time.Now()))

	if len(m.buf) != 10 {
		t.Fatalf("len(buf) = %d, want 10", len(m.buf))
	}
	if m.buf[0].text != "line 40" || m.buf[9].text != "line 49" {
		t.Errorf("buf = %q .. %q, want the newest lines", m.buf[0].text, m.buf[9].text)
	}
	if so, _ := m.LineCounts(); so != 50 {
		t.Errorf("stdout lines = %d, want 50", so)
	}
}

// =============================================================================
// Tests: Update - Done / Quit Messages
// =============================================================================

func TestModel_Update_Done(t *testing.T) {
	errs := lines.NewChannel("stderr", 10, 0)
	errs.FeedLine("fatal")
	runErr := errors.New("boom")

	m, cmd := update(t, New(Config{Stderr: errs}), DoneMsg{Err: runErr})

	if cmd != nil {
		t.Error("DoneMsg should not quit or reschedule by itself")
	}
	if !m.Done() || m.doneErr != runErr {
		t.Errorf("done/doneErr = %v/%v", m.Done(), m.doneErr)
	}
	if _, se := m.LineCounts(); se != 1 {
		t.Errorf("pending stderr not drained on done, got %d", se)
	}
}

func TestModel_Update_QuitMsg(t *testing.T) {
	m, cmd := update(t, New(Config{}), QuitMsg{})

	if !m.quitting {
		t.Error("quitting should be true after QuitMsg")
	}
	if cmd == nil {
		t.Error("expected tea.Quit cmd")
	}
	if m.View() != "" {
		t.Error("View should be empty when quitting")
	}
}

// =============================================================================
// Tests: Accessors
// =============================================================================

func TestModel_DropRate(t *testing.T) {
	out := lines.NewChannel("stdout", 1, 0)
	out.FeedLine("kept")
	out.FeedLine("dropped")

	model := New(Config{Stdout: out})
	if got := model.DropRate(); got != 0.5 {
		t.Errorf("DropRate() = %v, want 0.5", got)
	}

	if got := New(Config{}).DropRate(); got != 0 {
		t.Errorf("DropRate() without channels = %v, want 0", got)
	}
}

func TestModel_Elapsed(t *testing.T) {
	model := New(Config{})
	model.startTime = time.Now().Add(-5 * time.Second)

	if e := model.Elapsed(); e < 5*time.Second {
		t.Errorf("Elapsed() = %v, want >= 5s", e)
	}
}

func TestSendHelpers_NilProgram(t *testing.T) {
	SendDone(nil, nil)
	SendQuit(nil)
}
