// Package config provides configuration management for procrun.
package config

import "time"

// Config holds all command-line options.
type Config struct {
	// Executable
	ToolDir    string        `json:"tool_dir"`
	ExeName    string        `json:"exe_name"`
	CustomArgs string        `json:"custom_args"`
	Timeout    time.Duration `json:"timeout"` // 0 = no timeout
	Priority   string        `json:"priority"`

	// Script
	Script       string   `json:"script"` // positional, path passed to the tool
	Args         []string `json:"args"`   // positional, after the script
	InlineScript string   `json:"inline_script"`
	ScriptExt    string   `json:"script_ext"`
	TempDir      string   `json:"temp_dir"`

	// Child environment
	EnvFile string   `json:"env_file"`
	Env     []string `json:"env"` // KEY=VALUE

	// Streams
	StdinPath  string `json:"stdin_path"`  // "-" = our stdin
	StdoutPath string `json:"stdout_path"` // "-" = our stdout; enables raw mode

	// Run mode
	Async    bool          `json:"async"`
	Repeat   int           `json:"repeat"`
	Interval time.Duration `json:"interval"` // pause between repeated runs
	Jitter   time.Duration `json:"jitter"`   // max random extra pause per run

	// Observability
	MetricsAddr  string `json:"metrics_addr"` // empty = disabled
	PrintMetrics bool   `json:"print_metrics"`
	TUIEnabled   bool   `json:"tui_enabled"`
	Verbose      bool   `json:"verbose"`
	LogFormat    string `json:"log_format"` // json, text
	LogLevel     string `json:"log_level"`

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:   0,
		Priority:  "normal",
		ScriptExt: ".js",

		Repeat: 1,

		LogFormat: "text",
		LogLevel:  "info",
	}
}

// RawOutput reports whether stdout is pumped raw instead of split into lines.
func (c *Config) RawOutput() bool {
	return c.StdoutPath != ""
}
