package job

import (
	"strings"
	"sync"
)

// LogChannel is an unbounded, ordered sequence of log lines produced by one
// job and consumed by whoever streams its progress. An empty channel does
// not mean the job is done; only a closed and drained one does.
type LogChannel struct {
	mu      sync.Mutex
	pending []string
	partial string
	closed  bool
	wake    chan struct{}
}

func NewLogChannel() *LogChannel {
	return &LogChannel{wake: make(chan struct{})}
}

// Append adds a line. Lines appended after Close are dropped.
func (c *LogChannel) Append(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = append(c.pending, line)
	c.signal()
}

// Write splits p into lines so a logger can target the channel directly.
// A trailing fragment without a newline is held until the next write.
func (c *LogChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return len(p), nil
	}
	text := c.partial + string(p)
	lines := strings.Split(text, "\n")
	c.partial = lines[len(lines)-1]
	if added := lines[:len(lines)-1]; len(added) > 0 {
		c.pending = append(c.pending, added...)
		c.signal()
	}
	return len(p), nil
}

// Drain removes and returns the pending lines. done is true once the
// channel is closed and nothing is left to read.
func (c *LogChannel) Drain() (lines []string, done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, c.pending = c.pending, nil
	return lines, c.closed
}

// Ready returns a channel closed at the next Append, Write or Close.
func (c *LogChannel) Ready() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wake
}

// Close marks the end of the job's output. It flushes any partial line and
// is safe to call more than once.
func (c *LogChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.partial != "" {
		c.pending = append(c.pending, c.partial)
		c.partial = ""
	}
	c.closed = true
	c.signal()
}

func (c *LogChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// signal wakes waiters; callers hold mu.
func (c *LogChannel) signal() {
	close(c.wake)
	c.wake = make(chan struct{})
}
