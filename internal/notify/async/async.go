package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/tracecast/internal/model"
	"github.com/crimson-sun/tracecast/internal/notify"
)

const (
	defaultBufferSize   = 64
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 64.
func WithBufferSize(size int) Option {
	return func(a *Async) { a.bufSize = size }
}

// WithOnError sets the callback invoked when the inner notifier fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// Async decouples artifact delivery from the render workers via a buffered
// channel. Workers push into the channel; a background goroutine drains it
// to the wrapped notifier, so a slow sink (webhook) never stalls rendering.
// Errors from the inner notifier are passed to errFunc rather than
// propagated to the caller.
type Async struct {
	inner     notify.Notifier
	ch        chan model.Artifact
	done      chan struct{}
	errFunc   func(error)
	bufSize   int
	closeOnce sync.Once
}

// New wraps a notifier in an async channel-based sender. The background
// drain goroutine starts immediately.
func New(inner notify.Notifier, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		errFunc: func(err error) { slog.Warn("async notify error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.Artifact, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Notify sends the artifact into the channel, blocking if it is full.
func (a *Async) Notify(_ context.Context, artifact model.Artifact) error {
	a.ch <- artifact
	return nil
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner notifier.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			slog.Warn("async notify drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

// drain reads artifacts from the channel and delivers them to the inner
// notifier.
func (a *Async) drain() {
	defer close(a.done)
	for artifact := range a.ch {
		if err := a.inner.Notify(context.Background(), artifact); err != nil {
			a.errFunc(err)
		}
	}
}
