package lines

import (
	"sync"
	"sync/atomic"
)

// Channel is a lossy-by-design subscriber: FeedLine never blocks the
// producer, it drops the line when the buffer is full.
//
// Use it for consumers that run at their own pace (a terminal view). Never
// use it where every line matters; subscribe a Handler directly instead.
type Channel struct {
	stream string

	mu       sync.RWMutex
	closed   bool
	lineChan chan string

	linesRead    atomic.Int64
	linesDropped atomic.Int64

	dropThreshold float64
}

// NewChannel creates a Channel.
//
// Parameters:
//   - stream: "stdout" or "stderr", for identification
//   - bufferSize: channel buffer size (lines)
//   - dropThreshold: fraction (0.0-1.0) above which the channel is degraded
func NewChannel(stream string, bufferSize int, dropThreshold float64) *Channel {
	if bufferSize < 1 {
		bufferSize = 1000
	}
	if dropThreshold <= 0 {
		dropThreshold = 0.01
	}

	return &Channel{
		stream:        stream,
		lineChan:      make(chan string, bufferSize),
		dropThreshold: dropThreshold,
	}
}

// FeedLine queues line. Returns false if it was dropped or the channel is
// closed.
func (c *Channel) FeedLine(line string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}

	c.linesRead.Add(1)
	select {
	case c.lineChan <- line:
		return true
	default:
		c.linesDropped.Add(1)
		return false
	}
}

// Handler adapts the channel for Broadcaster.Subscribe.
func (c *Channel) Handler() Handler {
	return func(line string) { c.FeedLine(line) }
}

// Lines returns the receive side. It is closed by Close.
func (c *Channel) Lines() <-chan string {
	return c.lineChan
}

// Close closes the line channel. Safe to call multiple times.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.lineChan)
}

// Stats returns lines offered and lines dropped.
func (c *Channel) Stats() (read, dropped int64) {
	return c.linesRead.Load(), c.linesDropped.Load()
}

// DropRate returns the drop rate as a fraction (0.0 to 1.0).
func (c *Channel) DropRate() float64 {
	read := c.linesRead.Load()
	if read == 0 {
		return 0
	}
	return float64(c.linesDropped.Load()) / float64(read)
}

// IsDegraded returns true if the drop rate exceeds the configured threshold.
func (c *Channel) IsDegraded() bool {
	return c.DropRate() > c.dropThreshold
}

// Stream returns the stream name.
func (c *Channel) Stream() string {
	return c.stream
}
