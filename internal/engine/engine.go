// Package engine launches one external executable at a time, streams data
// to and from it, enforces an optional execution timeout, and reports a
// structured outcome.
//
// Run blocks until the child exits. RunAsync returns a Future that settles
// when the child's exit is observed. Both drive the same pipeline:
//
//	launch -> [raw stdio pumps | line notifications] -> watchdog -> error
//	aggregation -> finalize
//
// An Engine owns at most one child at a time. Starting a second run while
// one is active is the caller's responsibility to avoid.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-procrun/internal/cmdline"
	"github.com/randomizedcoder/go-procrun/internal/lines"
)

// Engine manages the lifecycle of a single child process per run.
type Engine struct {
	builder   cmdline.Builder
	logger    *slog.Logger
	callbacks Callbacks

	output *lines.Broadcaster
	errors *lines.Broadcaster

	// State management. Every entry point goes through mu.
	mu     sync.Mutex
	cfg    ExecConfig
	state  State
	proc   *child
	errLog *errorLog
}

// New creates an Engine.
func New(cfg Config) *Engine {
	builder := cfg.Builder
	if builder == nil {
		builder = cmdline.NewShellBuilder()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		builder:   builder,
		logger:    logger,
		callbacks: cfg.Callbacks,
		output:    lines.NewBroadcaster(),
		errors:    lines.NewBroadcaster(),
		cfg:       cfg.Exec,
		state:     StateNotStarted,
		errLog:    &errorLog{},
	}
}

// run is one in-flight invocation.
type run struct {
	c   *child
	cfg ExecConfig
	wd  *watchdog
}

// Run executes script with args and blocks until the child exits.
//
// If in is non-nil it is copied to the child's stdin on the calling
// goroutine and stdin is closed afterwards, so Run also waits for the whole
// input to be delivered. If out is non-nil the child's stdout is copied to it
// raw and OutputReceived is not fired for this run.
//
// Cancelling ctx aborts the run.
func (e *Engine) Run(ctx context.Context, script string, args []string, in io.Reader, out io.Writer) error {
	r, err := e.start(ctx, script, args, out)
	if err != nil {
		return err
	}

	if in != nil {
		if err := pumpInput(r.c, in); err != nil {
			if errors.Is(err, errChildClosedInput) {
				e.logger.Debug("stdin_closed_early", "run_id", r.c.runID, "error", err)
			} else {
				r.c.fail(err)
				e.stopIfRunning(r.c, reasonNone, nil)
			}
		}
	}

	return e.settle(r, awaitExit(r.c, r.cfg.Timeout))
}

// RunAsync starts script with args and returns without waiting. Launch
// failures are returned directly; everything after launch is reported
// through the Future. Output is delivered via OutputReceived.
//
// Cancelling ctx aborts the run.
func (e *Engine) RunAsync(ctx context.Context, script string, args []string) (*Future, error) {
	r, err := e.start(ctx, script, args, nil)
	if err != nil {
		return nil, err
	}

	f := newFuture(r.c.runID)

	var once sync.Once
	complete := func() {
		once.Do(func() {
			f.complete(e.settle(r, nil))
		})
	}

	subscribeExit(r.c, complete)

	return f, nil
}

// subscribeExit arranges for fn to run once c has exited. If the waiter has
// already marked the exit, fn runs now on the calling goroutine.
func subscribeExit(c *child, fn func()) {
	if !c.onExit(fn) {
		fn()
	}
}

// start builds argv, launches the child, installs it as the live handle and
// arms the watchdog and context watcher.
func (e *Engine) start(ctx context.Context, script string, args []string, out io.Writer) (*run, error) {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	runID := uuid.NewString()

	if err := ctx.Err(); err != nil {
		runErr := abortedError(err)
		e.report(Result{RunID: runID, ExitCode: -1, Err: runErr})
		return nil, runErr
	}

	argv, err := e.builder.Build(cfg.CustomArgs, script, args)
	if err != nil {
		runErr := launchError(err)
		e.report(Result{RunID: runID, ExitCode: -1, Err: runErr})
		return nil, runErr
	}

	log := &errorLog{}
	e.mu.Lock()
	e.errLog = log
	e.mu.Unlock()

	c, err := e.launch(runID, cfg, argv, out, log)
	if err != nil {
		e.logger.Error("process_launch_failed",
			"run_id", runID,
			"exe", cfg.ExePath(),
			"error", err,
		)
		e.report(Result{RunID: runID, ExitCode: -1, Err: err})
		return nil, err
	}

	e.mu.Lock()
	e.proc = c
	old := e.setStateLocked(StateRunning)
	e.mu.Unlock()
	e.notifyState(old, StateRunning)

	wd := armWatchdog(cfg.Timeout, func() {
		e.stopIfRunning(c, reasonTimedOut, nil)
		if c.stopReason() == reasonTimedOut {
			e.logger.Warn("watchdog_expired",
				"run_id", runID,
				"pid", c.pid(),
				"timeout", cfg.Timeout.String(),
			)
		}
	})

	c.stopCtx = context.AfterFunc(ctx, func() {
		e.stopIfRunning(c, reasonAborted, context.Cause(ctx))
	})

	e.logger.Info("process_started",
		"run_id", runID,
		"pid", c.pid(),
		"exe", c.path,
		"timeout", cfg.Timeout.String(),
		"priority", cfg.Priority.String(),
	)
	e.logger.Debug("process_command", "run_id", runID, "cmd", cmdline.String(c.path, c.argv))

	if e.callbacks.OnStart != nil {
		e.callbacks.OnStart(runID, c.pid())
	}

	return &run{c: c, cfg: cfg, wd: wd}, nil
}

// settle is the completion logic shared by both modes. preErr is an outcome
// already decided by the caller (an abort seen before waiting).
func (e *Engine) settle(r *run, preErr error) error {
	r.wd.disarm()
	if r.c.stopCtx != nil {
		r.c.stopCtx()
	}

	err := preErr
	if err == nil {
		err = e.outcome(r)
	}

	e.finalize(r, err)
	return err
}

// outcome classifies an exited child. Engine-initiated kills win over
// stdio failures, which win over the exit code.
func (e *Engine) outcome(r *run) error {
	if err := stopError(r.c, r.cfg.Timeout); err != nil {
		return err
	}

	code, pumpErr, _ := r.c.status()
	if pumpErr != nil {
		return stdioError(pumpErr)
	}

	return checkExitCode(code, r.c.errLog.snapshot())
}

// finalize is the Lifecycle Guard's last step for a run: release the handle
// and report the result.
func (e *Engine) finalize(r *run, err error) {
	c := r.c

	if cerr := c.closeStdin(); cerr != nil {
		e.logger.Debug("cleanup_failed", "run_id", c.runID, "op", "close_stdin", "error", cerr)
	}
	e.release(c, stateAfter(c))

	code, _, _ := c.status()
	res := Result{
		RunID:    c.runID,
		Started:  true,
		PID:      c.pid(),
		ExitCode: code,
		Duration: time.Since(c.started),
		BytesIn:  c.bytesIn.Load(),
		BytesOut: c.bytesOut.Load(),
		Err:      err,
	}

	if err != nil {
		e.logger.Warn("process_failed",
			"run_id", c.runID,
			"pid", res.PID,
			"outcome", string(Classify(err)),
			"exit_code", code,
			"uptime", res.Duration.String(),
			"error", err,
		)
	} else {
		e.logger.Info("process_exited",
			"run_id", c.runID,
			"pid", res.PID,
			"exit_code", code,
			"uptime", res.Duration.String(),
		)
	}

	e.report(res)
}

func (e *Engine) report(res Result) {
	if e.callbacks.OnComplete != nil {
		e.callbacks.OnComplete(res)
	}
}

// Abort kills the running child, if any. It is safe to call at any time,
// any number of times, from any goroutine. A run aborted mid-flight fails
// with CodeAborted. Abort returns once the kill is delivered; the child is
// reaped in the background.
func (e *Engine) Abort() {
	e.stopIfRunning(e.current(), reasonAborted, nil)
}

// Close aborts any running child. It always returns nil.
func (e *Engine) Close() error {
	e.Abort()
	return nil
}

// stopIfRunning is the Lifecycle Guard: kill c if it is still running, then
// release it. A nil or already exited child is a no-op. Cleanup failures are
// logged and swallowed.
func (e *Engine) stopIfRunning(c *child, r stopReason, cause error) {
	if c == nil || c.hasExited() {
		return
	}

	if err := c.kill(r, cause); err != nil {
		e.logger.Debug("cleanup_failed", "run_id", c.runID, "op", "kill", "error", err)
	}
	if err := c.closeStdin(); err != nil {
		e.logger.Debug("cleanup_failed", "run_id", c.runID, "op", "close_stdin", "error", err)
	}
	c.drainOutputFor(waitDelay)

	if c.stopReason() == reasonAborted {
		e.logger.Info("process_aborted", "run_id", c.runID, "pid", c.pid())
	}

	e.release(c, stateAfter(c))
}

// release clears the live handle if it is still c. Stale handles are ignored.
func (e *Engine) release(c *child, s State) {
	e.mu.Lock()
	if e.proc != c {
		e.mu.Unlock()
		return
	}
	e.proc = nil
	old := e.setStateLocked(s)
	e.mu.Unlock()

	e.notifyState(old, s)
}

func stateAfter(c *child) State {
	if c.stopReason() == reasonAborted {
		return StateAborted
	}
	return StateExited
}

func (e *Engine) setStateLocked(s State) State {
	old := e.state
	e.state = s
	return old
}

func (e *Engine) notifyState(oldState, newState State) {
	if e.callbacks.OnStateChange != nil && oldState != newState {
		e.callbacks.OnStateChange(oldState, newState)
	}
}

func (e *Engine) current() *child {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.proc
}

// WriteLine writes s and a newline to the running child's stdin.
func (e *Engine) WriteLine(s string) error {
	c := e.current()
	if c == nil {
		return ErrNotRunning
	}
	if _, err := c.writeStdin([]byte(s + "\n")); err != nil {
		return fmt.Errorf("write stdin: %w", err)
	}
	return nil
}

// WriteEnd closes the running child's stdin.
func (e *Engine) WriteEnd() error {
	c := e.current()
	if c == nil {
		return ErrNotRunning
	}
	if err := c.closeStdin(); err != nil {
		return fmt.Errorf("close stdin: %w", err)
	}
	return nil
}

// OutputReceived fires once per stdout line in line mode.
func (e *Engine) OutputReceived() *lines.Broadcaster {
	return e.output
}

// ErrorReceived fires once per stderr line.
func (e *Engine) ErrorReceived() *lines.Broadcaster {
	return e.errors
}

// ErrorLines returns the stderr lines captured by the current or most recent
// run. Complete only after that run has finished.
func (e *Engine) ErrorLines() []string {
	e.mu.Lock()
	log := e.errLog
	e.mu.Unlock()
	return log.snapshot()
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PID returns the live child's process id, or 0 if none.
func (e *Engine) PID() int {
	c := e.current()
	if c == nil {
		return 0
	}
	return c.pid()
}

// ExecConfig returns the configuration the next run will use.
func (e *Engine) ExecConfig() ExecConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetExecConfig replaces the configuration for subsequent runs.
func (e *Engine) SetExecConfig(cfg ExecConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}
