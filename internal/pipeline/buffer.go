package pipeline

import (
	"sync"
	"time"

	"github.com/crimson-sun/tracecast/internal/model"
)

// entry accumulates events for one correlation ID together with its idle
// tracking. Once promoted, the entry stays in the map until the render
// handoff resolves, so a crash mid-render cannot silently lose its
// accounting; events arriving after promotion start a fresh entry.
type entry struct {
	events     []model.TraceEvent
	lastUpdate time.Time
	promoted   bool
}

// buffer is the keyed correlation store. All methods are safe for
// concurrent use by transport readers and the sweep.
type buffer struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newBuffer() *buffer {
	return &buffer{entries: make(map[string]*entry)}
}

// append adds the event to the correlation's entry, creating it when
// absent, and refreshes the idle timestamp. An entry already handed off
// to rendering is replaced by a fresh one.
func (b *buffer) append(id string, ev model.TraceEvent, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok || e.promoted {
		e = &entry{}
		b.entries[id] = e
	}
	e.events = append(e.events, ev)
	e.lastUpdate = now
}

// idle returns the correlation IDs whose entries have seen no events for
// at least timeout and have not been promoted yet.
func (b *buffer) idle(now time.Time, timeout time.Duration) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []string
	for id, e := range b.entries {
		if !e.promoted && now.Sub(e.lastUpdate) >= timeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// promote marks the entry complete and returns a snapshot of its events.
// Idleness is re-verified under the lock: an event appended after the idle
// scan revives the entry, and a revived entry must not be promoted.
// Returns false if the entry vanished, was already promoted, or revived.
func (b *buffer) promote(id string, now time.Time, timeout time.Duration) ([]model.TraceEvent, *entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok || e.promoted || now.Sub(e.lastUpdate) < timeout {
		return nil, nil, false
	}
	e.promoted = true
	snapshot := make([]model.TraceEvent, len(e.events))
	copy(snapshot, e.events)
	return snapshot, e, true
}

// release removes the entry after its handoff resolved. The pointer match
// ensures a fresh entry created by post-promotion events survives.
func (b *buffer) release(id string, e *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.entries[id]; ok && current == e {
		delete(b.entries, id)
	}
}

// size returns the number of buffered correlation IDs.
func (b *buffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
