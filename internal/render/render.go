// Package render turns completed cycles into durable renderer input,
// supervises the external renderer subprocess, and resolves the produced
// artifact.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/tracecast/internal/model"
)

const (
	defaultTimeout = 120 * time.Second

	// killDelay bounds how long Wait lingers after the context kills the
	// subprocess (drains pipes held open by grandchildren).
	killDelay = 5 * time.Second
)

// The renderer announces its artifact in one of two phrasings, scraped
// from combined output. Fragile by nature; both forms are load-bearing
// and covered by tests.
var (
	reFileReady  = regexp.MustCompile(`File ready at '([^']+)'`)
	reVideoSaved = regexp.MustCompile(`Video saved to:\s*(\S+)`)
)

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the wall-clock bound on one renderer invocation.
// Default: 120s.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithScript sets a renderer entry script passed before the transfer file,
// for runtimes that are interpreters rather than standalone renderers.
func WithScript(path string) Option {
	return func(r *Runner) { r.script = path }
}

// WithCaptureBytes caps retained subprocess output. Default: 256KB.
func WithCaptureBytes(n int) Option {
	return func(r *Runner) { r.captureBytes = n }
}

// Request describes one cycle to render.
type Request struct {
	Cycle    model.Cycle
	PathHash string

	// TempTransfer selects a throwaway transfer file (fast-path cycles);
	// otherwise the transfer is written to a stable path under the work
	// directory for traceability.
	TempTransfer bool
}

// Runner invokes the external renderer for one cycle at a time. Each call
// blocks only its own goroutine; the pipeline runs a small pool of them.
type Runner struct {
	resolver     RuntimeResolver
	workDir      string
	script       string
	timeout      time.Duration
	captureBytes int
	now          func() time.Time
}

// NewRunner creates a Runner writing state under workDir.
func NewRunner(resolver RuntimeResolver, workDir string, opts ...Option) *Runner {
	r := &Runner{
		resolver: resolver,
		workDir:  workDir,
		timeout:  defaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ArtifactPath returns the deterministic artifact location for a
// (correlationId, pathHash) pair. Repeated renders of an identical path
// resolve to the same file.
func (r *Runner) ArtifactPath(correlationID, pathHash string) string {
	name := fmt.Sprintf("cycle_%s_%s.mp4", correlationID, pathHash)
	return filepath.Join(r.workDir, "renders", name)
}

// Render serializes the cycle, invokes the renderer with a bounded wait,
// and resolves the artifact. All failures are terminal for the cycle; the
// captured output is logged for diagnostics.
func (r *Runner) Render(ctx context.Context, req Request) (model.Artifact, error) {
	corr := req.Cycle.CorrelationID

	transferPath := filepath.Join(r.workDir, "traces", "cycle_"+corr+".json")
	if req.TempTransfer {
		transferPath = filepath.Join(os.TempDir(), "tracecast-"+uuid.NewString()[:8]+".json")
		defer func() {
			if err := os.Remove(transferPath); err != nil && !os.IsNotExist(err) {
				slog.Warn("render: remove temp transfer", "path", transferPath, "error", err)
			}
		}()
	}
	if err := WriteTransfer(transferPath, req.Cycle, r.now()); err != nil {
		return model.Artifact{}, err
	}

	runtimePath, err := r.resolver.Resolve(ctx)
	if err != nil {
		return model.Artifact{}, err
	}

	expected := r.ArtifactPath(corr, req.PathHash)
	if err := os.MkdirAll(filepath.Dir(expected), 0o755); err != nil {
		return model.Artifact{}, fmt.Errorf("render: create output dir: %w", err)
	}

	var args []string
	if r.script != "" {
		args = append(args, r.script)
	}
	args = append(args, transferPath)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out := newCapture(r.captureBytes)
	cmd := exec.CommandContext(runCtx, runtimePath, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = killDelay

	slog.Info("render: invoking renderer",
		"correlation_id", corr, "runtime", runtimePath, "transfer", transferPath)
	start := r.now()
	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		slog.Error("render: renderer timed out, killed",
			"correlation_id", corr, "timeout", r.timeout, "output", out.String())
		return model.Artifact{}, fmt.Errorf("render: renderer timed out after %s", r.timeout)
	}
	if runErr != nil {
		slog.Error("render: renderer failed",
			"correlation_id", corr, "error", runErr, "output", out.String())
		return model.Artifact{}, fmt.Errorf("render: renderer: %w", runErr)
	}

	path, err := r.resolveArtifact(out.String(), expected)
	if err != nil {
		slog.Error("render: renderer exited 0 but produced no artifact",
			"correlation_id", corr, "output", out.String())
		return model.Artifact{}, err
	}

	slog.Info("render: cycle rendered",
		"correlation_id", corr, "artifact", path, "elapsed", r.now().Sub(start))
	return model.Artifact{
		CorrelationID: corr,
		PathHash:      req.PathHash,
		Path:          path,
		RenderedAt:    r.now(),
	}, nil
}

// resolveArtifact scrapes the reported artifact path from renderer output
// and adopts it into the expected location. If neither phrasing matched,
// the expected path itself is checked as a fallback.
func (r *Runner) resolveArtifact(output, expected string) (string, error) {
	reported, ok := parseArtifactPath(output)
	if ok {
		if _, err := os.Stat(reported); err == nil {
			if reported == expected {
				return expected, nil
			}
			if err := copyFile(reported, expected); err != nil {
				return "", err
			}
			return expected, nil
		}
	}
	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	}
	return "", errors.New("render: no artifact path in renderer output")
}

// parseArtifactPath matches both accepted renderer phrasings.
func parseArtifactPath(output string) (string, bool) {
	if m := reFileReady.FindStringSubmatch(output); m != nil {
		return m[1], true
	}
	if m := reVideoSaved.FindStringSubmatch(output); m != nil {
		return m[1], true
	}
	return "", false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("render: open artifact %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("render: create artifact %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("render: copy artifact: %w", err)
	}
	return out.Close()
}
