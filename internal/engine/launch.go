package engine

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/randomizedcoder/go-procrun/internal/lines"
)

// waitDelay bounds how long Wait keeps reading line-mode pipes after the
// child exits, for when a grandchild inherited them.
const waitDelay = 2 * time.Second

// launch starts the child with all three standard streams redirected.
//
// Line listeners are installed on the command before Start, so no early
// output is missed. When out is non-nil, stdout is pumped raw to it instead
// of being split into OutputReceived lines.
//
// On any failure after Start the child is killed and reaped before the error
// is returned.
func (e *Engine) launch(runID string, cfg ExecConfig, argv []string, out io.Writer, errLog *errorLog) (*child, error) {
	path, err := cfg.absExePath()
	if err != nil {
		return nil, launchError(fmt.Errorf("resolve executable path: %w", err))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, notFoundError(path, err)
	}

	cmd := exec.Command(path, argv...) //nolint:gosec // running the configured tool is the point
	cmd.Dir = filepath.Dir(path)
	cmd.Env = cfg.environ()
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = waitDelay

	c := newChild(runID, path, argv, cmd)
	c.errLog = errLog

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, launchError(fmt.Errorf("stdin pipe: %w", err))
	}
	c.stdin = stdin

	c.stderrLines = lines.NewWriter(func(line string) {
		errLog.append(line)
		e.errors.Publish(line)
	})
	cmd.Stderr = c.stderrLines

	if out == nil {
		c.stdoutLines = lines.NewWriter(e.output.Publish)
		cmd.Stdout = c.stdoutLines
	} else {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			_ = stdin.Close()
			return nil, launchError(fmt.Errorf("stdout pipe: %w", err))
		}
		c.stdout = stdout
	}

	if err := cmd.Start(); err != nil {
		// Start closes the pipes it created on failure.
		return nil, launchError(err)
	}
	c.started = time.Now()

	if out != nil {
		c.pumps.Add(1)
		go pumpOutput(c, out)
	}

	// Until the waiter runs the process cannot be reaped, so its pid stays
	// valid for setPriority even if it has already exited.
	var prioErr error
	if cfg.Priority != PriorityNormal {
		prioErr = setPriority(c.pid(), cfg.Priority)
	}

	go c.wait()

	if prioErr != nil {
		e.stopIfRunning(c, reasonNone, nil)
		<-c.done
		return nil, launchError(fmt.Errorf("set priority %s: %w", cfg.Priority, prioErr))
	}

	return c, nil
}
