package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/tracecast/internal/model"
)

// Notifier writes JSON-encoded artifact records to stdout, one per line.
type Notifier struct {
	enc *json.Encoder
}

// New creates a stdout Notifier with optional pretty-printed JSON.
func New(pretty bool) *Notifier {
	return NewWriter(os.Stdout, pretty)
}

// NewWriter creates a Notifier targeting an arbitrary writer.
func NewWriter(w io.Writer, pretty bool) *Notifier {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Notifier{enc: enc}
}

func (n *Notifier) Notify(_ context.Context, artifact model.Artifact) error {
	if err := n.enc.Encode(artifact); err != nil {
		return fmt.Errorf("stdout notify: %w", err)
	}
	return nil
}

func (n *Notifier) Close() error {
	return nil
}
