package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/crimson-sun/tracecast/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type slowNotifier struct {
	delay time.Duration
	err   error

	mu       sync.Mutex
	received []model.Artifact
	closed   bool
}

func (s *slowNotifier) Notify(_ context.Context, a model.Artifact) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.received = append(s.received, a)
	s.mu.Unlock()
	return s.err
}

func (s *slowNotifier) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *slowNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestCloseDrainsPending(t *testing.T) {
	inner := &slowNotifier{delay: 5 * time.Millisecond}
	a := New(inner)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := a.Notify(ctx, model.Artifact{CorrelationID: "c"}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if inner.count() != 10 {
		t.Fatalf("delivered %d, want 10", inner.count())
	}
	if !inner.closed {
		t.Fatal("inner notifier not closed")
	}
}

func TestNotifyDoesNotBlockOnSlowSink(t *testing.T) {
	inner := &slowNotifier{delay: 50 * time.Millisecond}
	a := New(inner, WithBufferSize(8))
	defer a.Close()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := a.Notify(context.Background(), model.Artifact{}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Fatalf("Notify blocked for %v behind the slow sink", elapsed)
	}
}

func TestInnerErrorsReachCallback(t *testing.T) {
	boom := errors.New("sink down")
	inner := &slowNotifier{err: boom}

	errCh := make(chan error, 1)
	a := New(inner, WithOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}))

	if err := a.Notify(context.Background(), model.Artifact{}); err != nil {
		t.Fatalf("Notify reported inner error synchronously: %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Fatalf("callback err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error callback never invoked")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	a := New(&slowNotifier{})
	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
