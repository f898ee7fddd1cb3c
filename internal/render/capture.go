package render

import (
	"bytes"
	"sync"
)

// defaultCaptureBytes caps how much combined renderer output is retained.
const defaultCaptureBytes = 256 * 1024

// capture collects combined stdout/stderr from the renderer subprocess,
// keeping only the most recent max bytes. The artifact path is printed at
// the end of a successful run, so the tail is the part that matters for
// both parsing and diagnostics.
type capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated int64 // bytes dropped from the front
}

func newCapture(max int) *capture {
	if max <= 0 {
		max = defaultCaptureBytes
	}
	return &capture{max: max}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf.Write(p)
	if over := c.buf.Len() - c.max; over > 0 {
		c.buf.Next(over) // drop oldest bytes
		c.truncated += int64(over)
	}
	return len(p), nil
}

// String returns the retained output.
func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Truncated returns how many leading bytes were discarded.
func (c *capture) Truncated() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}
