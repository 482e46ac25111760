package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-procrun/internal/engine"
	"github.com/randomizedcoder/go-procrun/internal/lines"
	"github.com/randomizedcoder/go-procrun/internal/stats"
	"github.com/randomizedcoder/go-procrun/internal/timeseries"
)

const (
	defaultMaxLines = 1000

	// maxDrainPerTick bounds the work done per tick so a chatty child
	// cannot starve key handling.
	maxDrainPerTick = 5000
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// DoneMsg reports that all runs have finished.
type DoneMsg struct {
	Err error
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Status reports the live state of the engine.
type Status interface {
	State() engine.State
	PID() int
}

// Config holds TUI configuration.
type Config struct {
	Command     string
	MetricsAddr string

	Status Status
	Stdout *lines.Channel
	Stderr *lines.Channel

	// Rate counts lines from both streams. Optional.
	Rate *timeseries.RateTracker

	// Summary returns aggregated results so far. Optional.
	Summary func() *stats.Snapshot

	// OnQuit is called when the user quits while runs are in flight.
	OnQuit func()

	// MaxLines caps the scrollback. Default 1000.
	MaxLines int
}

type entry struct {
	stderr bool
	text   string
}

// Model represents the TUI state.
type Model struct {
	command     string
	metricsAddr string

	status  Status
	stdout  *lines.Channel
	stderr  *lines.Channel
	summary func() *stats.Snapshot
	onQuit  func()
	rate    *timeseries.RateTracker

	// Scrollback, oldest first.
	buf      []entry
	maxLines int

	stdoutLines int64
	stderrLines int64

	state engine.State
	pid   int
	snap  *stats.Snapshot
	rates *timeseries.RateStats

	stderrOnly bool
	done       bool
	doneErr    error

	startTime  time.Time
	lastUpdate time.Time

	width  int
	height int

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}

	return Model{
		command:     cfg.Command,
		metricsAddr: cfg.MetricsAddr,
		status:      cfg.Status,
		stdout:      cfg.Stdout,
		stderr:      cfg.Stderr,
		summary:     cfg.Summary,
		onQuit:      cfg.OnQuit,
		rate:        cfg.Rate,
		maxLines:    maxLines,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if !m.done && m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		case "e":
			m.stderrOnly = !m.stderrOnly
			return m, nil
		case "c":
			m.buf = nil
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m = m.refresh()
		return m, tickCmd()

	case DoneMsg:
		m = m.refresh()
		m.done = true
		m.doneErr = msg.Err
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderView()
}

// refresh drains pending lines and polls the engine.
func (m Model) refresh() Model {
	m = m.drain()
	if m.status != nil {
		m.state = m.status.State()
		m.pid = m.status.PID()
	}
	if m.summary != nil {
		m.snap = m.summary()
	}
	if m.rate != nil {
		m.rate.RecordSample()
		rs := m.rate.Stats()
		m.rates = &rs
	}
	m.lastUpdate = time.Now()
	return m
}

// drain moves queued lines into the scrollback without blocking.
func (m Model) drain() Model {
	var out, errs <-chan string
	if m.stdout != nil {
		out = m.stdout.Lines()
	}
	if m.stderr != nil {
		errs = m.stderr.Lines()
	}

	for n := 0; n < maxDrainPerTick && (out != nil || errs != nil); n++ {
		select {
		case line, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			m.stdoutLines++
			m.buf = append(m.buf, entry{text: line})
		case line, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.stderrLines++
			m.buf = append(m.buf, entry{stderr: true, text: line})
		default:
			out, errs = nil, nil
		}
	}

	if over := len(m.buf) - m.maxLines; over > 0 {
		m.buf = append([]entry(nil), m.buf[over:]...)
	}
	return m
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 250ms.
func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the viewer started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// LineCounts returns the stdout and stderr lines received so far.
func (m Model) LineCounts() (stdout, stderr int64) {
	return m.stdoutLines, m.stderrLines
}

// DropRate returns the fraction of lines the viewer could not keep up with.
func (m Model) DropRate() float64 {
	var read, dropped int64
	for _, c := range []*lines.Channel{m.stdout, m.stderr} {
		if c == nil {
			continue
		}
		r, d := c.Stats()
		read += r
		dropped += d
	}
	if read == 0 {
		return 0
	}
	return float64(dropped) / float64(read)
}

// Done reports whether DoneMsg has been received.
func (m Model) Done() bool {
	return m.done
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendDone tells the TUI that all runs have finished.
func SendDone(p *tea.Program, err error) {
	if p != nil {
		p.Send(DoneMsg{Err: err})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
