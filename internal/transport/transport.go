// Package transport implements the two socket roles of the trace protocol:
// an outbound client that dials an instrumented process and an inbound
// server that accepts connections from event producers. Both speak
// newline-delimited JSON, one trace event per line.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/crimson-sun/tracecast/internal/model"
)

// maxLineBytes bounds a single protocol line. cycle_complete events carry
// entire cycles inline, so lines can be large.
const maxLineBytes = 4 * 1024 * 1024

// EventFunc receives each decoded trace event. Implementations must be
// safe for concurrent calls: the server invokes the same func from every
// connection's reader.
type EventFunc func(model.TraceEvent)

// wireEvent is the JSON shape of one protocol line. Unknown fields are
// ignored; missing fields default per the protocol (type → unknown,
// numbers → 0, strings → "", nullable references → absent).
type wireEvent struct {
	Type          string  `json:"type"`
	Timestamp     float64 `json:"timestamp"`
	CallID        string  `json:"call_id"`
	ParentID      *string `json:"parent_id"`
	Module        string  `json:"module"`
	Function      string  `json:"function"`
	File          string  `json:"file"`
	Line          int     `json:"line"`
	Depth         int     `json:"depth"`
	CorrelationID string  `json:"correlation_id"`
	ProcessID     int     `json:"process_id"`
	SessionID     string  `json:"session_id"`
	LearningPhase string  `json:"learning_phase"`

	// Present only on cycle_complete lines.
	Calls []model.CallRecord `json:"calls"`
}

// DecodeLine parses one protocol line into a TraceEvent.
func DecodeLine(line []byte) (model.TraceEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return model.TraceEvent{}, fmt.Errorf("transport: decode line: %w", err)
	}

	ev := model.TraceEvent{
		Type:          model.ParseEventType(w.Type),
		Timestamp:     w.Timestamp,
		CallID:        w.CallID,
		Module:        w.Module,
		Function:      w.Function,
		File:          w.File,
		Line:          w.Line,
		Depth:         w.Depth,
		CorrelationID: w.CorrelationID,
		ProcessID:     w.ProcessID,
		SessionID:     w.SessionID,
		LearningPhase: w.LearningPhase,
	}
	if w.ParentID != nil {
		ev.ParentID = *w.ParentID
	}
	if ev.Type == model.EventCycleComplete {
		ev.Cycle = &model.CyclePayload{
			CorrelationID: w.CorrelationID,
			Calls:         w.Calls,
		}
	}
	return ev, nil
}
