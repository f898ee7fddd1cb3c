package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/crimson-sun/tracecast/internal/model"
)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	maxRetries           = 3
)

// Option configures a webhook Notifier.
type Option func(*Notifier)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(n *Notifier) { n.headers = h }
}

// WithBatchSize sets the number of artifacts accumulated before a flush.
// Default: 10.
func WithBatchSize(size int) Option {
	return func(n *Notifier) { n.batchSize = size }
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(n *Notifier) { n.flushInterval = d }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) { n.client.Timeout = d }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(n *Notifier) { n.errFunc = f }
}

// Notifier POSTs batched artifact records to an HTTP endpoint as a JSON
// array. Artifacts accumulate in an internal buffer and are flushed when
// batchSize is reached or flushInterval elapses. Retries on 5xx with
// exponential backoff.
type Notifier struct {
	client        *http.Client
	url           string
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	errFunc       func(error)
	mu            sync.Mutex
	pending       []model.Artifact
	timer         *time.Timer
}

// New creates a webhook notifier targeting the given URL.
func New(url string, opts ...Option) *Notifier {
	n := &Notifier{
		client:        &http.Client{Timeout: defaultTimeout},
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		errFunc:       func(err error) { slog.Warn("webhook notify flush error", "error", err) },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify appends an artifact to the batch. When batchSize is reached, the
// batch is flushed immediately. A timer is started on the first artifact
// to ensure the batch flushes even if batchSize is never reached.
func (n *Notifier) Notify(_ context.Context, artifact model.Artifact) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pending = append(n.pending, artifact)

	if len(n.pending) >= n.batchSize {
		return n.flushLocked()
	}

	// Start timer on first artifact in a new batch.
	if len(n.pending) == 1 {
		n.timer = time.AfterFunc(n.flushInterval, func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if err := n.flushLocked(); err != nil {
				n.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining artifacts and stops the timer.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if len(n.pending) > 0 {
		return n.flushLocked()
	}
	return nil
}

// flushLocked sends the pending batch via HTTP POST. Caller must hold n.mu.
func (n *Notifier) flushLocked() error {
	if len(n.pending) == 0 {
		return nil
	}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}

	batch := n.pending
	n.pending = nil

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("webhook notify: marshal: %w", err)
	}

	return n.postWithRetry(body)
}

// postWithRetry sends the body via HTTP POST with retry on 5xx.
func (n *Notifier) postWithRetry(body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook notify: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range n.headers {
			req.Header.Set(k, v)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook notify: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook notify: HTTP %d", resp.StatusCode)

		// Only retry on 5xx server errors.
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
