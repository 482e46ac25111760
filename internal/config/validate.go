package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/randomizedcoder/go-procrun/internal/engine"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or every problem joined with errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.ExeName == "" {
		errs = append(errs, ValidationError{
			Field:   "exe_name",
			Message: "-exe is required",
		})
	}

	// Exactly one script source, except for -print-cmd which may run bare.
	switch {
	case cfg.Script != "" && cfg.InlineScript != "":
		errs = append(errs, ValidationError{
			Field:   "script",
			Message: "use either a script path or -e, not both",
		})
	case cfg.Script == "" && cfg.InlineScript == "" && !cfg.PrintCmd:
		errs = append(errs, ValidationError{
			Field:   "script",
			Message: "a script path or -e is required",
		})
	}

	if cfg.ScriptExt != "" && !strings.HasPrefix(cfg.ScriptExt, ".") {
		errs = append(errs, ValidationError{
			Field:   "script_ext",
			Message: fmt.Sprintf("must start with a dot (got %q)", cfg.ScriptExt),
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must not be negative",
		})
	}

	if _, err := engine.ParsePriority(cfg.Priority); err != nil {
		errs = append(errs, ValidationError{
			Field:   "priority",
			Message: err.Error(),
		})
	}

	if cfg.Repeat < 1 {
		errs = append(errs, ValidationError{
			Field:   "repeat",
			Message: "must be at least 1",
		})
	}

	if cfg.Interval < 0 || cfg.Jitter < 0 {
		errs = append(errs, ValidationError{
			Field:   "interval",
			Message: "-interval and -jitter must not be negative",
		})
	}

	// Raw streams are only pumped by blocking runs.
	if cfg.Async && (cfg.StdinPath != "" || cfg.StdoutPath != "") {
		errs = append(errs, ValidationError{
			Field:   "async",
			Message: "-async cannot be combined with -stdin or -stdout",
		})
	}

	// The viewer needs line events, and owns the terminal.
	if cfg.TUIEnabled && cfg.RawOutput() {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "-tui cannot be combined with -stdout",
		})
	}
	if cfg.TUIEnabled && cfg.StdinPath == "-" {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "-tui cannot read the child's input from the terminal",
		})
	}

	for _, kv := range cfg.Env {
		if key, _, ok := strings.Cut(kv, "="); !ok || key == "" {
			errs = append(errs, ValidationError{
				Field:   "env",
				Message: fmt.Sprintf("want KEY=VALUE (got %q)", kv),
			})
		}
	}

	if cfg.EnvFile != "" {
		if _, err := os.Stat(cfg.EnvFile); err != nil {
			errs = append(errs, ValidationError{
				Field:   "env_file",
				Message: err.Error(),
			})
		}
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
