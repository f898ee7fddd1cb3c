package model

import "time"

// Cycle is a completed logical execution cycle: the ordered events sharing
// one correlation ID, as captured at promotion time.
type Cycle struct {
	CorrelationID string
	Events        []TraceEvent
}

// Transfer is the JSON document written for the renderer: the durable input
// file the external process consumes.
type Transfer struct {
	CorrelationID string       `json:"correlation_id"`
	Timestamp     int64        `json:"timestamp"`
	EventCount    int          `json:"event_count"`
	Calls         []CallRecord `json:"calls"`
}

// NewTransfer builds the transfer document for a cycle.
func NewTransfer(c Cycle, now time.Time) Transfer {
	calls := make([]CallRecord, 0, len(c.Events))
	for _, e := range c.Events {
		calls = append(calls, e.Record())
	}
	return Transfer{
		CorrelationID: c.CorrelationID,
		Timestamp:     now.Unix(),
		EventCount:    len(calls),
		Calls:         calls,
	}
}

// Cycle reconstructs a Cycle from a transfer document.
func (t Transfer) Cycle() Cycle {
	events := make([]TraceEvent, 0, len(t.Calls))
	for _, r := range t.Calls {
		events = append(events, r.Event())
	}
	return Cycle{CorrelationID: t.CorrelationID, Events: events}
}

// Artifact describes a rendered media file for one cycle.
type Artifact struct {
	CorrelationID string    `json:"correlation_id"`
	PathHash      string    `json:"path_hash"`
	Path          string    `json:"path"`
	RenderedAt    time.Time `json:"rendered_at"`
	Cached        bool      `json:"cached"` // true when served from the dedup cache
}
