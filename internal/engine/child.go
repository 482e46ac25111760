package engine

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-procrun/internal/lines"
)

// stopReason records why the engine killed a child. The first reason wins.
type stopReason int32

const (
	reasonNone stopReason = iota
	reasonAborted
	reasonTimedOut
)

// child is the process handle owned by an Engine for one run.
//
// The waiter goroutine (wait) is the only place that reaps the process. It
// closes done after the process has exited and every line has been
// delivered, so anything read after <-done observes the complete run.
type child struct {
	runID   string
	path    string
	argv    []string
	cmd     *exec.Cmd
	started time.Time

	stdinMu     sync.Mutex
	stdin       io.WriteCloser
	stdinClosed bool

	stdout      io.ReadCloser // raw output mode only
	stdoutLines *lines.Writer // line mode only
	stderrLines *lines.Writer
	errLog      *errorLog

	// pumps tracks readers of cmd's own pipes. cmd.Wait must not run
	// before they are done.
	pumps sync.WaitGroup

	bytesIn  atomic.Int64
	bytesOut atomic.Int64

	reason atomic.Int32

	mu         sync.Mutex
	exited     bool
	exitCode   int
	waitErr    error
	pumpErr    error
	abortCause error
	listeners  []func()
	drainTimer *time.Timer

	stopCtx func() bool // detaches the context watcher, set by Engine

	done chan struct{}
}

func newChild(runID, path string, argv []string, cmd *exec.Cmd) *child {
	return &child{
		runID:    runID,
		path:     path,
		argv:     argv,
		cmd:      cmd,
		exitCode: -1,
		done:     make(chan struct{}),
	}
}

// pid returns the OS process id, or 0 before start.
func (c *child) pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// wait reaps the process. Run it in its own goroutine right after Start.
func (c *child) wait() {
	c.pumps.Wait()

	c.mu.Lock()
	if c.drainTimer != nil {
		c.drainTimer.Stop()
	}
	c.mu.Unlock()

	err := c.cmd.Wait()

	if c.stdoutLines != nil {
		c.stdoutLines.Flush()
	}
	if c.stderrLines != nil {
		c.stderrLines.Flush()
	}

	c.mu.Lock()
	c.exited = true
	c.waitErr = err
	c.exitCode = extractExitCode(c.cmd.ProcessState, err)
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	close(c.done)

	for _, fn := range listeners {
		fn()
	}
}

// onExit registers fn to run on the waiter goroutine after exit.
// It returns false, without registering, once the exit has been recorded.
// done may still be open at that point.
func (c *child) onExit(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exited {
		return false
	}
	c.listeners = append(c.listeners, fn)
	return true
}

// hasExited reports whether the waiter has finished.
func (c *child) hasExited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// kill forcibly terminates the child. It is a no-op once the child has
// exited. The first non-zero reason is kept; cause is recorded with it.
func (c *child) kill(r stopReason, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exited || c.cmd.Process == nil {
		return nil
	}

	marked := r != reasonNone && c.reason.CompareAndSwap(int32(reasonNone), int32(r))
	if marked {
		c.abortCause = cause
	}

	if err := c.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			// Exited on its own before the kill landed.
			if marked {
				c.reason.Store(int32(reasonNone))
				c.abortCause = nil
			}
			return nil
		}
		return err
	}
	return nil
}

// drainOutputFor bounds how long the raw output pump may keep reading after
// a kill. A grandchild can hold the stdout pipe open; once d elapses the
// read end is closed and the pump stops.
func (c *child) drainOutputFor(d time.Duration) {
	if c.stdout == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exited || c.drainTimer != nil {
		return
	}
	c.drainTimer = time.AfterFunc(d, func() { _ = c.stdout.Close() })
}

func (c *child) stopReason() stopReason {
	return stopReason(c.reason.Load())
}

// fail records the first stdio pump error.
func (c *child) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pumpErr == nil {
		c.pumpErr = err
	}
}

// status returns the exit details. Only meaningful after <-done.
func (c *child) status() (exitCode int, pumpErr, abortCause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode, c.pumpErr, c.abortCause
}

// writeStdin writes p to the child's standard input.
func (c *child) writeStdin(p []byte) (int, error) {
	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()

	if c.stdinClosed {
		return 0, os.ErrClosed
	}
	n, err := c.stdin.Write(p)
	c.bytesIn.Add(int64(n))
	return n, err
}

// closeStdin signals EOF to the child. Safe to call multiple times.
func (c *child) closeStdin() error {
	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()

	if c.stdinClosed {
		return nil
	}
	c.stdinClosed = true
	return c.stdin.Close()
}
