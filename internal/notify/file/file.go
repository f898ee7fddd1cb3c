package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/crimson-sun/tracecast/internal/model"
)

const defaultBufSize = 16 * 1024

// Notifier appends NDJSON artifact records to a file with buffered I/O.
// The file doubles as a durable log of every artifact the pipeline
// produced or served from cache.
type Notifier struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

// New creates a file notifier appending to path.
func New(path string) (*Notifier, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file notify: open %s: %w", path, err)
	}
	return &Notifier{
		f:    f,
		w:    bufio.NewWriterSize(f, defaultBufSize),
		path: path,
	}, nil
}

// Notify JSON-encodes the artifact and appends it as a line. Each record
// is flushed through to disk; artifact notifications are rare enough that
// durability beats batching.
func (n *Notifier) Notify(_ context.Context, artifact model.Artifact) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("file notify: marshal: %w", err)
	}
	data = append(data, '\n')
	if _, err := n.w.Write(data); err != nil {
		return fmt.Errorf("file notify: write: %w", err)
	}
	if err := n.w.Flush(); err != nil {
		return fmt.Errorf("file notify: flush: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.w.Flush(); err != nil {
		n.f.Close()
		return fmt.Errorf("file notify: flush: %w", err)
	}
	return n.f.Close()
}
