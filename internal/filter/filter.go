package filter

import (
	"strings"

	"github.com/crimson-sun/tracecast/internal/model"
)

// Policy decides which trace events are excluded from buffering and
// rendering, by source file path and by module name. A nil *Policy
// excludes nothing.
type Policy struct {
	pathFragments  []string
	modulePrefixes []string
}

// New creates a Policy. Path matching is substring-based (so "site-packages"
// excludes any vendored file); module matching is exact or dotted-prefix
// (so "numpy" also excludes "numpy.linalg").
func New(pathFragments, modulePrefixes []string) *Policy {
	return &Policy{
		pathFragments:  pathFragments,
		modulePrefixes: modulePrefixes,
	}
}

// Excluded reports whether the event should be dropped.
func (p *Policy) Excluded(e model.TraceEvent) bool {
	if p == nil {
		return false
	}
	for _, frag := range p.pathFragments {
		if strings.Contains(e.File, frag) {
			return true
		}
	}
	for _, prefix := range p.modulePrefixes {
		if e.Module == prefix || strings.HasPrefix(e.Module, prefix+".") {
			return true
		}
	}
	return false
}

// Apply returns the events that survive the policy, preserving order.
// The input slice is never mutated.
func (p *Policy) Apply(events []model.TraceEvent) []model.TraceEvent {
	if p == nil || (len(p.pathFragments) == 0 && len(p.modulePrefixes) == 0) {
		return events
	}
	kept := make([]model.TraceEvent, 0, len(events))
	for _, e := range events {
		if !p.Excluded(e) {
			kept = append(kept, e)
		}
	}
	return kept
}
