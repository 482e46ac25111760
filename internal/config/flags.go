package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

// envList is a custom flag type for repeatable -env flags.
type envList []string

func (e *envList) String() string {
	return strings.Join(*e, ", ")
}

func (e *envList) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// ParseFlags parses command-line arguments (without the program name) and
// returns a Config. Usage goes to output.
func ParseFlags(args []string, output io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	var env envList

	fs := flag.NewFlagSet("procrun", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.Usage = func() {
		fmt.Fprintf(output, `procrun - run an external tool against a script with timeouts and streaming

Usage:
  procrun [flags] <script> [args...]
  procrun [flags] -e '<script text>' [args...]

Executable:
`)
		printFlagCategory(fs, output, []string{"dir", "exe", "args", "timeout", "priority"})

		fmt.Fprintf(output, "\nScript:\n")
		printFlagCategory(fs, output, []string{"e", "script-ext", "temp-dir"})

		fmt.Fprintf(output, "\nEnvironment:\n")
		printFlagCategory(fs, output, []string{"env", "env-file"})

		fmt.Fprintf(output, "\nStreams:\n")
		printFlagCategory(fs, output, []string{"stdin", "stdout"})

		fmt.Fprintf(output, "\nRun Mode:\n")
		printFlagCategory(fs, output, []string{"async", "repeat", "interval", "jitter"})

		fmt.Fprintf(output, "\nObservability:\n")
		printFlagCategory(fs, output, []string{"metrics", "print-metrics", "tui", "v", "log-format", "log-level"})

		fmt.Fprintf(output, "\nDiagnostics:\n")
		printFlagCategory(fs, output, []string{"print-cmd", "skip-preflight"})

		fmt.Fprintf(output, `
Examples:
  # Run a script with node, 30s timeout
  procrun -exe node -timeout 30s build.js --release

  # Pipe a file through a filter, raw
  procrun -exe sh -args -c -stdin input.txt -stdout - 'tr a-z A-Z'

  # Inline script, three runs, print run metrics afterwards
  procrun -dir /opt/casperjs/bin -exe casperjs -e 'console.log("hi"); phantom.exit(0)' -repeat 3 -print-metrics

`)
	}

	// Executable
	fs.StringVar(&cfg.ToolDir, "dir", cfg.ToolDir, "Directory holding the executable (also the working directory)")
	fs.StringVar(&cfg.ExeName, "exe", cfg.ExeName, "Executable file name inside -dir")
	fs.StringVar(&cfg.CustomArgs, "args", cfg.CustomArgs, "Arguments placed before the script, shell-quoted")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Kill the child after this long (0 = no timeout)")
	fs.StringVar(&cfg.Priority, "priority", cfg.Priority,
		`Process priority: "idle", "below-normal", "normal", "above-normal", "high", "realtime"`)

	// Script
	fs.StringVar(&cfg.InlineScript, "e", cfg.InlineScript, "Script text, written to a temporary file")
	fs.StringVar(&cfg.ScriptExt, "script-ext", cfg.ScriptExt, "Extension for -e temporary files")
	fs.StringVar(&cfg.TempDir, "temp-dir", cfg.TempDir, "Directory for -e temporary files (default: system temp)")

	// Environment
	fs.Var(&env, "env", "Set KEY=VALUE in the child environment (can repeat)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Load child environment from a dotenv file")

	// Streams
	fs.StringVar(&cfg.StdinPath, "stdin", cfg.StdinPath, `Feed this file to the child's stdin ("-" = our stdin)`)
	fs.StringVar(&cfg.StdoutPath, "stdout", cfg.StdoutPath, `Copy child stdout raw to this file ("-" = our stdout)`)

	// Run mode
	fs.BoolVar(&cfg.Async, "async", cfg.Async, "Start the run without blocking and wait on its future")
	fs.IntVar(&cfg.Repeat, "repeat", cfg.Repeat, "Number of sequential runs")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Pause between repeated runs")
	fs.DurationVar(&cfg.Jitter, "jitter", cfg.Jitter, "Add up to this much random pause per repeated run")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Serve Prometheus metrics on this address (empty = disabled)")
	fs.BoolVar(&cfg.PrintMetrics, "print-metrics", cfg.PrintMetrics, "Print metrics in text exposition format on exit")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show a live output viewer (q aborts the run)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)

	// Diagnostics
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the command line and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Env = env

	// Positional arguments: the script (unless -e is used), then its args.
	rest := fs.Args()
	if cfg.InlineScript == "" && len(rest) > 0 {
		cfg.Script = rest[0]
		rest = rest[1:]
	}
	cfg.Args = rest

	return cfg, nil
}

// printFlagCategory prints flags matching the given names, in that order.
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
			fmt.Fprintf(w, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(w)
	}
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	if _, ok := f.Value.(*envList); ok {
		return "KEY=VALUE"
	}

	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return "string"
	}
	switch getter.Get().(type) {
	case bool:
		return ""
	case int:
		return "int"
	case time.Duration:
		return "duration"
	default:
		return "string"
	}
}
