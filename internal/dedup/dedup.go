package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/tracecast/internal/model"
)

// hashWidth is the number of hex characters kept from the digest.
const hashWidth = 16

// Fingerprint computes the path hash of a cycle: a fixed-width token over
// the ordered module.function sequence of its call events. Timestamps,
// call IDs, and every other volatile field are ignored, so two cycles that
// executed the same path collapse to the same fingerprint.
func Fingerprint(events []model.TraceEvent) string {
	parts := make([]string, 0, len(events))
	for _, e := range events {
		if e.Type != model.EventCall {
			continue
		}
		parts = append(parts, norm.NFC.String(e.Module+"."+e.Function))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:hashWidth]
}

// CallPath returns the human-readable join the fingerprint is computed
// over, useful for logging and diagnostics.
func CallPath(events []model.TraceEvent) string {
	parts := make([]string, 0, len(events))
	for _, e := range events {
		if e.Type != model.EventCall {
			continue
		}
		parts = append(parts, e.Module+"."+e.Function)
	}
	return strings.Join(parts, "|")
}
