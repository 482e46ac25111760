// Package tui provides a live terminal viewer for a running child process.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for styling.
// It displays:
// - Process state, pid and elapsed time
// - Line counts per stream and viewer drop rate
// - The tail of the child's stdout and stderr
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-procrun/internal/engine"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	stdoutStyle = lipgloss.NewStyle().
			Foreground(colorText)

	stderrStyle = lipgloss.NewStyle().
			Foreground(colorError)
)

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(14)
)

// =============================================================================
// Viewer Status Indicator
// =============================================================================

// ViewerStatus represents how many lines the viewer had to drop.
type ViewerStatus int

const (
	ViewerStatusOK ViewerStatus = iota
	ViewerStatusDegraded
	ViewerStatusSeverelyDegraded
)

// GetViewerStatus returns the status based on drop rate.
func GetViewerStatus(dropRate float64) ViewerStatus {
	switch {
	case dropRate > 0.10: // >10% dropped
		return ViewerStatusSeverelyDegraded
	case dropRate > 0.0:
		return ViewerStatusDegraded
	default:
		return ViewerStatusOK
	}
}

// GetViewerLabel returns a styled label based on drop rate.
func GetViewerLabel(dropRate float64) string {
	switch GetViewerStatus(dropRate) {
	case ViewerStatusSeverelyDegraded:
		return statusError.Render("● Viewer (severely degraded)")
	case ViewerStatusDegraded:
		return statusWarning.Render("● Viewer (dropping lines)")
	default:
		return statusOK.Render("● Viewer")
	}
}

// StateStyle returns the style used to render an engine state.
func StateStyle(s engine.State) lipgloss.Style {
	switch s {
	case engine.StateRunning:
		return statusInfo
	case engine.StateExited:
		return statusOK
	case engine.StateAborted:
		return statusError
	default:
		return mutedStyle
	}
}

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}
