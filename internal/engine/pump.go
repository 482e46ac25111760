package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	stdinChunkSize  = 8 * 1024
	stdoutChunkSize = 32 * 1024
)

// errChildClosedInput means the child stopped reading stdin before the
// caller's input was exhausted. It is not a run failure by itself.
var errChildClosedInput = errors.New("child closed its standard input")

// pumpInput copies in to the child's stdin in fixed-size chunks, then closes
// stdin. Each chunk goes straight to the pipe, there is no user-space buffer
// to flush.
func pumpInput(c *child, in io.Reader) error {
	defer c.closeStdin()

	buf := make([]byte, stdinChunkSize)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := c.writeStdin(buf[:n]); werr != nil {
				return fmt.Errorf("%w: %w", errChildClosedInput, werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read input stream: %w", rerr)
		}
	}
}

// pumpOutput copies the child's stdout to out until EOF. It runs on its own
// goroutine, tracked by c.pumps. A failing writer kills the child, and the
// rest of stdout is drained so the child can be reaped. A read end closed by
// drainOutputFor counts as EOF.
func pumpOutput(c *child, out io.Writer) {
	defer c.pumps.Done()

	buf := make([]byte, stdoutChunkSize)
	for {
		n, rerr := c.stdout.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				c.fail(fmt.Errorf("write output stream: %w", werr))
				_ = c.kill(reasonNone, nil)
				c.drainOutputFor(waitDelay)
				_, _ = io.Copy(io.Discard, c.stdout)
				return
			}
			c.bytesOut.Add(int64(n))
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) && !errors.Is(rerr, os.ErrClosed) {
				c.fail(fmt.Errorf("read child stdout: %w", rerr))
			}
			return
		}
	}
}
