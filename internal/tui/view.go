package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-procrun/internal/engine"
	"github.com/randomizedcoder/go-procrun/internal/stats"
)

// chrome is the number of rows used by everything except the output pane.
const chrome = 12

func (m Model) renderView() string {
	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		m.renderOutput(),
	}
	if m.done {
		sections = append(sections, m.renderDone())
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" procrun │ %s │ %s │ Elapsed: %s ",
		StateStyle(m.state).Render(m.state.String()),
		GetViewerLabel(m.DropRate()),
		stats.FormatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Status
// =============================================================================

func (m Model) renderStatus() string {
	pid := "-"
	if m.pid > 0 {
		pid = fmt.Sprintf("%d", m.pid)
	}

	left := []string{
		RenderKeyValue("PID", pid),
		RenderKeyValue("Stdout lines", stats.FormatNumber(m.stdoutLines)),
		RenderKeyValue("Stderr lines", stats.FormatNumber(m.stderrLines)),
	}
	if m.rates != nil {
		left = append(left, RenderKeyValue("Lines/s", fmt.Sprintf("%.1f (60s avg %.1f)", m.rates.Rate1s, m.rates.Rate60s)))
	}

	var right []string
	if m.snap != nil {
		right = []string{
			RenderKeyValue("Runs", fmt.Sprintf("%d", m.snap.Runs)),
			RenderKeyValue("Failed", fmt.Sprintf("%d", m.snap.Failed())),
		}
		if m.snap.Launched > 0 {
			right = append(right, RenderKeyValue("P50", stats.FormatMs(m.snap.DurationP50)))
		}
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Left, left...),
		"    ",
		lipgloss.JoinVertical(lipgloss.Left, right...),
	)

	if m.command != "" {
		content = lipgloss.JoinVertical(lipgloss.Left,
			dimStyle.Render(truncate("$ "+m.command, m.width-6)),
			content,
		)
	}

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Output Pane
// =============================================================================

func (m Model) renderOutput() string {
	title := "Output"
	if m.stderrOnly {
		title = "Output (stderr only)"
	}

	rows := m.visibleLines(m.outputHeight())
	if len(rows) == 0 {
		rows = []string{dimStyle.Render("(no output yet)")}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render(title)}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

func (m Model) outputHeight() int {
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	return h
}

// visibleLines returns the last n rendered scrollback lines.
func (m Model) visibleLines(n int) []string {
	width := m.width - 6
	rows := make([]string, 0, n)

	for i := len(m.buf) - 1; i >= 0 && len(rows) < n; i-- {
		e := m.buf[i]
		switch {
		case e.stderr:
			rows = append(rows, stderrStyle.Render(truncate(e.text, width)))
		case !m.stderrOnly:
			rows = append(rows, stdoutStyle.Render(truncate(e.text, width)))
		}
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows
}

// =============================================================================
// Completion Banner
// =============================================================================

func (m Model) renderDone() string {
	if m.doneErr == nil {
		return statusOK.Render("✓ Finished successfully")
	}

	msg := m.doneErr.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i] + " ..."
	}
	return statusError.Render(fmt.Sprintf("✗ %s: %s", engine.Classify(m.doneErr), truncate(msg, m.width-20)))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	quit := "q: abort & quit"
	if m.done {
		quit = "q: quit"
	}
	shortcuts := []string{quit, "e: stderr only", "c: clear"}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := ""
	if m.metricsAddr != "" {
		right = dimStyle.Render("Metrics: http://" + m.metricsAddr + "/metrics")
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}

// truncate shortens s to width runes, marking the cut with "...".
func truncate(s string, width int) string {
	if width < 4 {
		width = 4
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
