package render

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"time"
)

// ErrNoRuntime is returned when no candidate executable responds to the
// liveness probe.
var ErrNoRuntime = errors.New("render: no usable renderer runtime found")

// RuntimeResolver locates the executable used to launch the renderer.
// Injected so tests can simulate presence or absence deterministically.
type RuntimeResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ProbeResolver tries an ordered list of candidate executables, accepting
// the first one that answers `--version` within the probe timeout. The
// result is memoized for the resolver's lifetime.
type ProbeResolver struct {
	Candidates []string
	Timeout    time.Duration

	mu       sync.Mutex
	resolved string
}

// Resolve returns the first live candidate, or ErrNoRuntime.
func (r *ProbeResolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved != "" {
		return r.resolved, nil
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	for _, candidate := range r.Candidates {
		path, err := exec.LookPath(candidate)
		if err != nil {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		err = exec.CommandContext(probeCtx, path, "--version").Run()
		cancel()
		if err != nil {
			continue
		}
		r.resolved = path
		return path, nil
	}
	return "", ErrNoRuntime
}

// FixedResolver always resolves to Path. Used by tests and by deployments
// with an explicitly configured runtime.
type FixedResolver struct {
	Path string
}

func (r FixedResolver) Resolve(context.Context) (string, error) {
	if r.Path == "" {
		return "", ErrNoRuntime
	}
	return r.Path, nil
}
