// Package preflight provides startup validation checks.
package preflight

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
)

// minFileDescriptors covers three stdio pipes per child, the metrics
// listener, log files and redirected stdin/stdout with generous headroom.
const minFileDescriptors = 64

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for running exePath with scripts
// staged in tempDir. An empty tempDir skips the temp dir check.
func RunAll(exePath, tempDir string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 3),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkExecutable(exePath))
	add(checkFileDescriptors(minFileDescriptors))
	if tempDir != "" {
		add(checkTempDir(tempDir))
	}

	return result
}

// checkExecutable verifies path names a regular file the current user may
// execute. The executable is not run.
func checkExecutable(path string) Check {
	if path == "" {
		return Check{Name: "executable", Passed: false, Message: "no executable configured"}
	}

	info, err := os.Stat(path)
	if err != nil {
		msg := fmt.Sprintf("cannot stat %s: %v", path, err)
		if errors.Is(err, fs.ErrNotExist) {
			msg = fmt.Sprintf("not found at %s", path)
		}
		return Check{Name: "executable", Passed: false, Message: msg}
	}

	if !info.Mode().IsRegular() {
		return Check{Name: "executable", Passed: false, Message: fmt.Sprintf("%s is not a regular file", path)}
	}

	// Windows has no execute bit.
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return Check{Name: "executable", Passed: false, Message: fmt.Sprintf("%s is not executable (mode %s)", path, info.Mode().Perm())}
	}

	return Check{Name: "executable", Passed: true, Message: fmt.Sprintf("found at %s", path)}
}

// checkTempDir verifies scripts can be staged in dir.
func checkTempDir(dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: "temp_dir", Passed: false, Message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}

	f, err := os.CreateTemp(dir, ".procrun-preflight-*")
	if err != nil {
		return Check{Name: "temp_dir", Passed: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	return Check{Name: "temp_dir", Passed: true, Message: fmt.Sprintf("%s is writable", dir)}
}

// PrintResults prints the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	case "executable":
		return "check -dir and -exe, and chmod +x the executable"
	case "temp_dir":
		return "pass a writable directory with -temp-dir"
	default:
		return "see documentation"
	}
}
