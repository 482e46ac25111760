package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/randomizedcoder/go-procrun/internal/cmdline"
)

// Priority is the scheduling class applied to the child right after start.
type Priority int

const (
	// PriorityNormal leaves the platform default untouched.
	PriorityNormal Priority = iota
	PriorityIdle
	PriorityBelowNormal
	PriorityAboveNormal
	PriorityHigh
	PriorityRealTime
)

// String returns the flag spelling of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityIdle:
		return "idle"
	case PriorityBelowNormal:
		return "below-normal"
	case PriorityAboveNormal:
		return "above-normal"
	case PriorityHigh:
		return "high"
	case PriorityRealTime:
		return "realtime"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePriority parses the spelling produced by Priority.String.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PriorityNormal, nil
	case "idle":
		return PriorityIdle, nil
	case "below-normal", "belownormal":
		return PriorityBelowNormal, nil
	case "above-normal", "abovenormal":
		return PriorityAboveNormal, nil
	case "high":
		return PriorityHigh, nil
	case "realtime", "real-time":
		return PriorityRealTime, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// nice maps a priority class onto a Unix nice value.
func (p Priority) nice() int {
	switch p {
	case PriorityIdle:
		return 19
	case PriorityBelowNormal:
		return 10
	case PriorityAboveNormal:
		return -5
	case PriorityHigh:
		return -10
	case PriorityRealTime:
		return -20
	default:
		return 0
	}
}

// ExecConfig describes one invocation. The engine copies it at run start, so
// changing it mid-run affects only the next run.
type ExecConfig struct {
	// CustomArgs is placed before the script on the command line.
	CustomArgs string

	// ToolDir is the directory holding the executable. It is also the
	// child's working directory.
	ToolDir string

	// ExeName is the executable file name inside ToolDir.
	ExeName string

	// Priority is applied after start when not PriorityNormal.
	Priority Priority

	// Timeout kills the child when exceeded. Zero means no timeout.
	Timeout time.Duration

	// TempDir is where inline scripts are written. Empty means os.TempDir().
	TempDir string

	// Env is merged over the parent environment.
	Env map[string]string
}

// ExePath returns the resolved executable path.
func (c ExecConfig) ExePath() string {
	return filepath.Join(c.ToolDir, c.ExeName)
}

// absExePath resolves ExePath against the current directory. The child's
// working directory is the executable's directory, so a relative path would
// otherwise be resolved twice.
func (c ExecConfig) absExePath() (string, error) {
	return filepath.Abs(c.ExePath())
}

// TempPath returns TempDir, creating it if needed, or os.TempDir().
func (c ExecConfig) TempPath() (string, error) {
	if c.TempDir == "" {
		return os.TempDir(), nil
	}
	if err := os.MkdirAll(c.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return c.TempDir, nil
}

// environ merges Env over os.Environ. Nil means inherit the parent env.
func (c ExecConfig) environ() []string {
	if len(c.Env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// Callbacks contains optional hooks for engine events.
type Callbacks struct {
	// OnStateChange is called when the engine state changes.
	OnStateChange func(oldState, newState State)

	// OnStart is called when a child process starts.
	OnStart func(runID string, pid int)

	// OnComplete is called exactly once per run, after the Lifecycle Guard
	// has finalized it. Launch failures are reported too (Started=false).
	OnComplete func(res Result)
}

// Config holds configuration for creating an Engine.
type Config struct {
	Exec      ExecConfig
	Builder   cmdline.Builder // defaults to cmdline.ShellBuilder
	Logger    *slog.Logger    // defaults to slog.Default()
	Callbacks Callbacks
}
