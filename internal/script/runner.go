// Package script runs inline script text through an engine by writing it to
// a uniquely named temporary file first.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-procrun/internal/engine"
)

const (
	// DefaultPrefix starts every temporary script file name.
	DefaultPrefix = "procrun"

	// DefaultExt is appended to temporary script file names.
	DefaultExt = ".js"
)

// Runner writes script text to <TempDir>/<prefix>-<uuid><ext> and runs that
// file. The file is removed once the run has completed.
type Runner struct {
	engine *engine.Engine
	prefix string
	ext    string
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPrefix sets the file name prefix.
func WithPrefix(prefix string) Option {
	return func(r *Runner) { r.prefix = prefix }
}

// WithExt sets the file name extension, including the dot.
func WithExt(ext string) Option {
	return func(r *Runner) { r.ext = ext }
}

// WithLogger sets the logger used for cleanup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a Runner on top of e.
func NewRunner(e *engine.Engine, opts ...Option) *Runner {
	r := &Runner{
		engine: e,
		prefix: DefaultPrefix,
		ext:    DefaultExt,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run writes text to a temporary file, runs it like Engine.Run and removes
// the file before returning.
func (r *Runner) Run(ctx context.Context, text string, args []string, in io.Reader, out io.Writer) error {
	path, err := r.write(text)
	if err != nil {
		return err
	}
	defer r.remove(path)

	return r.engine.Run(ctx, path, args, in, out)
}

// RunAsync writes text to a temporary file and runs it like
// Engine.RunAsync. The file is removed before the future's Done channel is
// closed, or immediately if the launch fails.
func (r *Runner) RunAsync(ctx context.Context, text string, args []string) (*engine.Future, error) {
	path, err := r.write(text)
	if err != nil {
		return nil, err
	}

	f, err := r.engine.RunAsync(ctx, path, args)
	if err != nil {
		r.remove(path)
		return nil, err
	}

	f.OnDone(func(error) { r.remove(path) })
	return f, nil
}

// write stores text in a new file under the engine's temp dir.
func (r *Runner) write(text string) (string, error) {
	dir, err := r.engine.ExecConfig().TempPath()
	if err != nil {
		return "", fmt.Errorf("script temp dir: %w", err)
	}

	path := filepath.Join(dir, r.prefix+"-"+uuid.NewString()+r.ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}
	if _, err := io.WriteString(f, text); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close script file: %w", err)
	}

	return path, nil
}

func (r *Runner) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("cleanup_failed", "op", "remove_script", "path", path, "error", err)
	}
}
