package model

// EventType classifies a trace event.
type EventType string

const (
	EventCall          EventType = "call"
	EventReturn        EventType = "return"
	EventCycleComplete EventType = "cycle_complete"
	EventUnknown       EventType = "unknown"
)

// ParseEventType maps a wire string to an EventType. Anything unrecognized
// (including the empty string) becomes EventUnknown.
func ParseEventType(s string) EventType {
	switch s {
	case "call":
		return EventCall
	case "return":
		return EventReturn
	case "cycle_complete":
		return EventCycleComplete
	default:
		return EventUnknown
	}
}

// TraceEvent is one instrumentation point emitted by a traced process.
// Events are immutable after decoding; all derived state (buffers, idle
// timestamps, fingerprints) lives outside the event.
type TraceEvent struct {
	Type          EventType
	Timestamp     float64
	CallID        string
	ParentID      string // empty when absent
	Module        string
	Function      string
	File          string
	Line          int
	Depth         int
	CorrelationID string // empty when absent — such events cannot be buffered
	ProcessID     int
	SessionID     string
	LearningPhase string

	// Cycle is present only on cycle_complete events and carries the
	// entire cycle inline, making the event self-sufficient for rendering.
	Cycle *CyclePayload
}

// CallRecord is the wire shape of one call inside a cycle_complete payload
// and inside transfer files handed to the renderer.
type CallRecord struct {
	CallID        string  `json:"call_id"`
	Type          string  `json:"type"`
	Timestamp     float64 `json:"timestamp"`
	Module        string  `json:"module"`
	Function      string  `json:"function"`
	FilePath      string  `json:"file_path"`
	LineNumber    int     `json:"line_number"`
	Depth         int     `json:"depth"`
	ParentID      string  `json:"parent_id,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

// CyclePayload is the self-contained body of a cycle_complete event.
type CyclePayload struct {
	CorrelationID string       `json:"correlation_id"`
	Calls         []CallRecord `json:"calls"`
}

// Event converts a call record back into a TraceEvent.
func (r CallRecord) Event() TraceEvent {
	return TraceEvent{
		Type:          ParseEventType(r.Type),
		Timestamp:     r.Timestamp,
		CallID:        r.CallID,
		ParentID:      r.ParentID,
		Module:        r.Module,
		Function:      r.Function,
		File:          r.FilePath,
		Line:          r.LineNumber,
		Depth:         r.Depth,
		CorrelationID: r.CorrelationID,
	}
}

// Record converts the event to its transfer-file wire shape.
func (e TraceEvent) Record() CallRecord {
	return CallRecord{
		CallID:        e.CallID,
		Type:          string(e.Type),
		Timestamp:     e.Timestamp,
		Module:        e.Module,
		Function:      e.Function,
		FilePath:      e.File,
		LineNumber:    e.Line,
		Depth:         e.Depth,
		ParentID:      e.ParentID,
		CorrelationID: e.CorrelationID,
	}
}
