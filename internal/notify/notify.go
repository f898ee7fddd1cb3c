package notify

import (
	"context"

	"github.com/crimson-sun/tracecast/internal/model"
)

// Notifier defines the interface for artifact notification destinations.
// The pipeline calls Notify for every resolved artifact, cached or
// freshly rendered.
type Notifier interface {
	Notify(ctx context.Context, artifact model.Artifact) error
	Close() error
}
