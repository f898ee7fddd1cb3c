package pipeline

import "sync"

// inFlight is the mutual-exclusion guard over correlation IDs currently
// being rendered. tryAdd is atomic check-and-add, so the idle sweep and the
// fast path can never select the same correlation ID twice concurrently.
type inFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInFlight() *inFlight {
	return &inFlight{ids: make(map[string]struct{})}
}

// tryAdd claims the ID, returning false if it is already claimed.
func (f *inFlight) tryAdd(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.ids[id]; exists {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

// remove releases the ID once its cycle resolved, success or failure.
func (f *inFlight) remove(id string) {
	f.mu.Lock()
	delete(f.ids, id)
	f.mu.Unlock()
}

// size returns the number of claimed IDs.
func (f *inFlight) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}
