package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/tracecast/internal/model"
	"github.com/crimson-sun/tracecast/internal/notify"
)

// Multi fans out artifact notifications to multiple notify.Notifier
// implementations. Each Notify call delivers the artifact to every wrapped
// notifier sequentially. If one fails, the remaining notifiers still
// receive the artifact.
type Multi struct {
	notifiers []notify.Notifier
}

// New creates a Multi that fans out to the given notifiers.
func New(notifiers ...notify.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify delivers the artifact to every wrapped notifier. Errors are
// collected but do not prevent delivery to subsequent notifiers.
func (m *Multi) Notify(ctx context.Context, artifact model.Artifact) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, artifact); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped notifier, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
