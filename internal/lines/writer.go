package lines

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// MaxLineLength caps a single buffered line. A longer run of bytes without a
// newline is emitted as its own line.
const MaxLineLength = 1024 * 1024

// Writer splits the bytes written to it into lines and hands each one to
// emit. It is meant to be installed as exec.Cmd.Stdout or Stderr so the
// command's own copier goroutine feeds it and Wait does not return until
// every line has been emitted.
//
// A trailing "\r" is stripped so CRLF output yields the same lines as LF.
type Writer struct {
	emit func(string)

	mu  sync.Mutex
	buf []byte

	bytesWritten atomic.Int64
	linesEmitted atomic.Int64
}

// NewWriter creates a Writer that calls emit once per line.
func NewWriter(emit func(string)) *Writer {
	return &Writer{emit: emit}
}

// Write implements io.Writer. It never returns an error.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.bytesWritten.Add(int64(len(p)))
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emitLocked(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	if len(w.buf) >= MaxLineLength {
		w.emitLocked(w.buf)
		w.buf = w.buf[:0]
	}

	// Reclaim the consumed prefix once nothing is pending.
	if len(w.buf) == 0 {
		w.buf = nil
	}

	return len(p), nil
}

// Flush emits any buffered partial line. Call it after the producer is done.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emitLocked(w.buf)
		w.buf = nil
	}
}

func (w *Writer) emitLocked(b []byte) {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	w.linesEmitted.Add(1)
	if w.emit != nil {
		w.emit(string(b))
	}
}

// Stats returns the bytes written and lines emitted so far.
func (w *Writer) Stats() (bytesWritten, linesEmitted int64) {
	return w.bytesWritten.Load(), w.linesEmitted.Load()
}
