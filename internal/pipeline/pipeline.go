// Package pipeline correlates incoming trace events into cycles, detects
// completion by idleness or by self-declared cycle_complete events, and
// feeds completed cycles through dedup into the renderer.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/tracecast/internal/dedup"
	"github.com/crimson-sun/tracecast/internal/filter"
	"github.com/crimson-sun/tracecast/internal/model"
	"github.com/crimson-sun/tracecast/internal/notify"
	"github.com/crimson-sun/tracecast/internal/render"
)

const (
	defaultSweepInterval = 2 * time.Second
	defaultIdleTimeout   = 5 * time.Second
	defaultWorkers       = 2
	defaultDrainGrace    = 10 * time.Second
	defaultQueueSize     = 256
)

// Renderer turns one completed cycle into an artifact. Implemented by
// *render.Runner in production and by mocks in tests.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (model.Artifact, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSweepInterval sets how often the idle sweep runs. Default: 2s.
func WithSweepInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.sweepInterval = d }
}

// WithIdleTimeout sets how long a correlation must stay quiet before its
// cycle is considered complete. Default: 5s.
func WithIdleTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.idleTimeout = d }
}

// WithWorkers sets the render worker pool size. Default: 2.
func WithWorkers(workers int) Option {
	return func(p *Pipeline) { p.workerCount = workers }
}

// WithDrainGrace bounds how long Close waits for queued cycles before
// cancelling in-flight renders. Default: 10s.
func WithDrainGrace(d time.Duration) Option {
	return func(p *Pipeline) { p.drainGrace = d }
}

// WithClock overrides the time source, for deterministic idle tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithQueueSize sets the render queue capacity. A full queue drops cycles
// rather than blocking transport readers. Default: 256.
func WithQueueSize(size int) Option {
	return func(p *Pipeline) { p.queueSize = size }
}

// job is one completed cycle awaiting a render worker. Both triggers —
// the idle sweep and the fast path — feed the same queue.
type job struct {
	cycle model.Cycle
	entry *entry // non-nil for sweep-promoted cycles, released after resolve
	temp  bool   // fast-path cycles use a throwaway transfer file
}

// Pipeline owns the correlation buffer, the idle sweep, the in-flight
// guard, the dedup cache lookup, and the render worker pool.
type Pipeline struct {
	policy   *filter.Policy
	cache    *dedup.Cache
	renderer Renderer
	notifier notify.Notifier

	sweepInterval time.Duration
	idleTimeout   time.Duration
	workerCount   int
	drainGrace    time.Duration
	queueSize     int
	now           func() time.Time

	buf      *buffer
	inflight *inFlight
	jobs     chan job

	ctx    context.Context
	cancel context.CancelFunc

	sendMu  sync.RWMutex
	running bool

	workers   sync.WaitGroup
	sweepStop chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// New creates a Pipeline and starts its sweep and worker goroutines.
func New(policy *filter.Policy, cache *dedup.Cache, renderer Renderer, notifier notify.Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		policy:        policy,
		cache:         cache,
		renderer:      renderer,
		notifier:      notifier,
		sweepInterval: defaultSweepInterval,
		idleTimeout:   defaultIdleTimeout,
		workerCount:   defaultWorkers,
		drainGrace:    defaultDrainGrace,
		queueSize:     defaultQueueSize,
		now:           time.Now,
		buf:           newBuffer(),
		inflight:      newInFlight(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.jobs = make(chan job, p.queueSize)
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.sweepStop = make(chan struct{})
	p.sweepDone = make(chan struct{})
	p.running = true

	for i := 0; i < p.workerCount; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	go p.sweep()
	return p
}

// HandleEvent ingests one trace event. cycle_complete events are
// fast-pathed straight to rendering; everything else is filtered and
// buffered under its correlation ID. Safe for concurrent calls.
func (p *Pipeline) HandleEvent(ev model.TraceEvent) {
	if ev.Type == model.EventCycleComplete {
		p.fastPath(ev)
		return
	}
	if p.policy.Excluded(ev) {
		return
	}
	if ev.CorrelationID == "" {
		// Nothing to buffer against; not an error.
		return
	}
	p.buf.append(ev.CorrelationID, ev, p.now())
}

// fastPath renders a self-contained cycle immediately, bypassing the idle
// sweep. The in-flight guard still applies.
func (p *Pipeline) fastPath(ev model.TraceEvent) {
	payload := ev.Cycle
	if payload == nil || payload.CorrelationID == "" {
		slog.Warn("pipeline: cycle_complete without usable payload, dropped")
		return
	}

	events := make([]model.TraceEvent, 0, len(payload.Calls))
	for _, call := range payload.Calls {
		events = append(events, call.Event())
	}
	events = p.policy.Apply(events)
	if len(events) == 0 {
		slog.Info("pipeline: cycle fully excluded by filter, abandoned",
			"correlation_id", payload.CorrelationID)
		return
	}

	if !p.inflight.tryAdd(payload.CorrelationID) {
		slog.Debug("pipeline: cycle already in flight, fast path skipped",
			"correlation_id", payload.CorrelationID)
		return
	}
	p.enqueue(job{
		cycle: model.Cycle{CorrelationID: payload.CorrelationID, Events: events},
		temp:  true,
	})
}

// sweep periodically promotes idle correlation buffers to complete.
func (p *Pipeline) sweep() {
	defer close(p.sweepDone)

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.sweepStop:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

// sweepOnce promotes every idle, not-yet-in-flight correlation.
func (p *Pipeline) sweepOnce() {
	for _, id := range p.buf.idle(p.now(), p.idleTimeout) {
		if !p.inflight.tryAdd(id) {
			continue
		}
		events, e, ok := p.buf.promote(id, p.now(), p.idleTimeout)
		if !ok {
			p.inflight.remove(id)
			continue
		}
		slog.Info("pipeline: idle cycle promoted",
			"correlation_id", id, "events", len(events))
		p.enqueue(job{
			cycle: model.Cycle{CorrelationID: id, Events: events},
			entry: e,
		})
	}
}

// enqueue hands a job to the worker pool. A full queue or a closed
// pipeline drops the cycle; failures are contained per cycle.
func (p *Pipeline) enqueue(j job) {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if !p.running {
		p.resolve(j)
		return
	}
	select {
	case p.jobs <- j:
	default:
		slog.Warn("pipeline: render queue full, dropping cycle",
			"correlation_id", j.cycle.CorrelationID)
		p.resolve(j)
	}
}

// worker consumes completed cycles until the queue closes.
func (p *Pipeline) worker() {
	defer p.workers.Done()
	for j := range p.jobs {
		p.process(j)
	}
}

// process runs one cycle through dedup and, on a miss, the renderer.
// The buffer entry and in-flight claim are released whatever the outcome.
func (p *Pipeline) process(j job) {
	defer p.resolve(j)

	fingerprint := dedup.Fingerprint(j.cycle.Events)

	if path, ok := p.cache.Lookup(fingerprint); ok {
		slog.Info("pipeline: dedup cache hit, skipping render",
			"correlation_id", j.cycle.CorrelationID, "path_hash", fingerprint)
		p.deliver(model.Artifact{
			CorrelationID: j.cycle.CorrelationID,
			PathHash:      fingerprint,
			Path:          path,
			RenderedAt:    p.now(),
			Cached:        true,
		})
		return
	}

	artifact, err := p.renderer.Render(p.ctx, render.Request{
		Cycle:        j.cycle,
		PathHash:     fingerprint,
		TempTransfer: j.temp,
	})
	if err != nil {
		// Terminal for this cycle; no retry, no partial artifact.
		slog.Error("pipeline: cycle failed",
			"correlation_id", j.cycle.CorrelationID, "error", err)
		return
	}

	p.cache.Record(fingerprint, artifact.Path)
	p.deliver(artifact)
}

// resolve releases a cycle's buffer entry and in-flight claim.
func (p *Pipeline) resolve(j job) {
	if j.entry != nil {
		p.buf.release(j.cycle.CorrelationID, j.entry)
	}
	p.inflight.remove(j.cycle.CorrelationID)
}

// deliver notifies the artifact sink. Notification failures are logged,
// never propagated back into the cycle's outcome.
func (p *Pipeline) deliver(artifact model.Artifact) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(p.ctx, artifact); err != nil {
		slog.Warn("pipeline: artifact notification failed",
			"correlation_id", artifact.CorrelationID, "error", err)
	}
}

// Close stops the sweep, drains queued cycles within the grace period,
// then cancels whatever is still rendering. Idempotent.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		close(p.sweepStop)
		<-p.sweepDone

		p.sendMu.Lock()
		p.running = false
		close(p.jobs)
		p.sendMu.Unlock()

		done := make(chan struct{})
		go func() {
			p.workers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(p.drainGrace):
			slog.Warn("pipeline: drain grace elapsed, cancelling in-flight renders")
			p.cancel()
			<-done
		}
		p.cancel()
	})
}
