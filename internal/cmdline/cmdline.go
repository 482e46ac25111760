// Package cmdline builds the argument vector handed to a child process.
//
// The engine never quotes arguments itself. os/exec passes argv straight to
// execve on Unix and escapes each element with syscall.EscapeArg on Windows,
// so a Builder only has to decide which words go where.
package cmdline

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Builder turns the configured custom argument string, a script path and the
// script's arguments into argv (without the executable itself).
type Builder interface {
	Build(customArgs, script string, args []string) ([]string, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(customArgs, script string, args []string) ([]string, error)

// Build calls f.
func (f BuilderFunc) Build(customArgs, script string, args []string) ([]string, error) {
	return f(customArgs, script, args)
}

// ShellBuilder splits the custom argument string with POSIX shell word rules,
// then appends the script and its arguments verbatim.
//
// Resulting order: <custom words...> <script> <args...>
type ShellBuilder struct{}

// NewShellBuilder returns the default Builder.
func NewShellBuilder() ShellBuilder {
	return ShellBuilder{}
}

// Build implements Builder.
func (ShellBuilder) Build(customArgs, script string, args []string) ([]string, error) {
	argv := make([]string, 0, len(args)+4)

	if strings.TrimSpace(customArgs) != "" {
		words, err := shellquote.Split(customArgs)
		if err != nil {
			return nil, fmt.Errorf("parse custom args %q: %w", customArgs, err)
		}
		argv = append(argv, words...)
	}

	if script != "" {
		argv = append(argv, script)
	}

	return append(argv, args...), nil
}

// String renders exe and argv as a shell-quoted command line for logs and
// -print-cmd. It is display only; nothing parses it back.
func String(exe string, argv []string) string {
	return shellquote.Join(append([]string{exe}, argv...)...)
}
