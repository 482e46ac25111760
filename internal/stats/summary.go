package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/randomizedcoder/go-procrun/internal/engine"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Command is the display form of the command that was run.
	Command string

	// MetricsAddr is the Prometheus endpoint address, if one was served.
	MetricsAddr string

	// RecentStderr is the tail of the child's stderr.
	RecentStderr []string

	// ErrorCounts counts stderr lines per pattern.
	ErrorCounts map[string]int
}

// FormatExitSummary formats the aggregated runs for display at exit.
func FormatExitSummary(snap *Snapshot, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                             procrun Exit Summary\n")
	b.WriteString(ruleHeavy + "\n")

	if cfg.Command != "" {
		fmt.Fprintf(&b, "Command:                %s\n", cfg.Command)
	}
	if snap == nil {
		b.WriteString("(no runs recorded)\n\n")
		b.WriteString(ruleHeavy)
		return b.String()
	}

	fmt.Fprintf(&b, "Elapsed:                %s\n", FormatDuration(snap.Elapsed))
	fmt.Fprintf(&b, "Runs:                   %d (%d launched, %d failed)\n\n", snap.Runs, snap.Launched, snap.Failed())

	writeSection(&b, "Outcomes")
	for _, o := range engine.Outcomes() {
		if n := snap.Outcomes[o]; n > 0 {
			fmt.Fprintf(&b, "  %-22s %d\n", o, n)
		}
	}
	b.WriteString("\n")

	if snap.Launched > 0 {
		writeSection(&b, "Run Duration")
		fmt.Fprintf(&b, "  Min:                  %s\n", FormatMs(snap.DurationMin))
		fmt.Fprintf(&b, "  Mean:                 %s\n", FormatMs(snap.DurationMean))
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatMs(snap.DurationP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatMs(snap.DurationP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatMs(snap.DurationP99))
		fmt.Fprintf(&b, "  Max:                  %s\n\n", FormatMs(snap.DurationMax))
	}

	if snap.BytesIn > 0 || snap.BytesOut > 0 {
		writeSection(&b, "Raw Streams")
		fmt.Fprintf(&b, "  Bytes to stdin:       %s\n", FormatBytes(snap.BytesIn))
		fmt.Fprintf(&b, "  Bytes from stdout:    %s\n\n", FormatBytes(snap.BytesOut))
	}

	if len(snap.ExitCodes) > 0 {
		writeSection(&b, "Exit Codes")

		codes := make([]int, 0, len(snap.ExitCodes))
		for code := range snap.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), snap.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if len(cfg.ErrorCounts) > 0 || len(cfg.RecentStderr) > 0 {
		writeSection(&b, "Stderr")

		patterns := make([]string, 0, len(cfg.ErrorCounts))
		for p := range cfg.ErrorCounts {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)
		for _, p := range patterns {
			fmt.Fprintf(&b, "  %-22s %d\n", p, cfg.ErrorCounts[p])
		}
		if len(patterns) > 0 && len(cfg.RecentStderr) > 0 {
			b.WriteString("\n")
		}
		for _, line := range cfg.RecentStderr {
			fmt.Fprintf(&b, "  | %s\n", line)
		}
		b.WriteString("\n")
	}

	if snap.LastErr != nil {
		fmt.Fprintf(&b, "Last error: %s\n\n", firstLine(snap.LastErr.Error()))
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(ruleHeavy)
	return b.String()
}

func writeSection(b *strings.Builder, title string) {
	b.WriteString(ruleLight)
	pad := (79 - len(title)) / 2
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(ruleLight + "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case engine.CodeAborted:
		return "(aborted)"
	case 130:
		return "(SIGINT)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatMs formats a duration as milliseconds, or microseconds below 1ms.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
