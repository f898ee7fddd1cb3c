package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/tracecast/internal/model"
)

func testCycle(corr string) model.Cycle {
	return model.Cycle{
		CorrelationID: corr,
		Events: []model.TraceEvent{
			{Type: model.EventCall, CallID: "c1", Module: "M", Function: "f", CorrelationID: corr},
			{Type: model.EventCall, CallID: "c2", Module: "N", Function: "g", CorrelationID: corr},
		},
	}
}

// writeScript drops an executable shell script standing in for the renderer.
// The script receives the transfer file path as its only argument.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "renderer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRunner(t *testing.T, script string, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithScript(script), WithTimeout(5 * time.Second)}, opts...)
	return NewRunner(FixedResolver{Path: "/bin/sh"}, t.TempDir(), opts...)
}

func TestRenderAdoptsReportedArtifact(t *testing.T) {
	produced := filepath.Join(t.TempDir(), "out.mp4")
	script := writeScript(t, fmt.Sprintf(
		"echo rendering\necho video-bytes > %q\necho \"File ready at '%s'\"\n",
		produced, produced))

	r := newTestRunner(t, script)
	artifact, err := r.Render(context.Background(), Request{
		Cycle:    testCycle("corr_a"),
		PathHash: "beef",
	})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	want := r.ArtifactPath("corr_a", "beef")
	if artifact.Path != want {
		t.Fatalf("artifact.Path = %q, want %q", artifact.Path, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("adopted artifact missing: %v", err)
	}
	if strings.TrimSpace(string(data)) != "video-bytes" {
		t.Fatalf("artifact content = %q", data)
	}
}

func TestRenderSecondPhrasing(t *testing.T) {
	produced := filepath.Join(t.TempDir(), "movie.mp4")
	script := writeScript(t, fmt.Sprintf(
		"touch %q\necho \"Video saved to: %s\"\n", produced, produced))

	r := newTestRunner(t, script)
	artifact, err := r.Render(context.Background(), Request{
		Cycle:    testCycle("corr_b"),
		PathHash: "cafe",
	})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if artifact.Path != r.ArtifactPath("corr_b", "cafe") {
		t.Fatalf("artifact.Path = %q", artifact.Path)
	}
}

func TestRenderFallsBackToExpectedPath(t *testing.T) {
	// Renderer writes the expected location directly but announces nothing
	// recognizable. The fallback existence check must still adopt it.
	r := newTestRunner(t, "")
	expected := r.ArtifactPath("corr_c", "f00d")
	script := writeScript(t, fmt.Sprintf(
		"mkdir -p %q\ntouch %q\necho done rendering\n", filepath.Dir(expected), expected))
	r.script = script

	artifact, err := r.Render(context.Background(), Request{
		Cycle:    testCycle("corr_c"),
		PathHash: "f00d",
	})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if artifact.Path != expected {
		t.Fatalf("artifact.Path = %q, want %q", artifact.Path, expected)
	}
}

func TestRenderZeroExitWithoutArtifactFails(t *testing.T) {
	script := writeScript(t, "echo all good, no file though\n")
	r := newTestRunner(t, script)

	if _, err := r.Render(context.Background(), Request{
		Cycle:    testCycle("corr_d"),
		PathHash: "d00d",
	}); err == nil {
		t.Fatal("expected failure despite zero exit")
	}
}

func TestRenderNonZeroExit(t *testing.T) {
	script := writeScript(t, "echo boom >&2\nexit 3\n")
	r := newTestRunner(t, script)

	if _, err := r.Render(context.Background(), Request{
		Cycle:    testCycle("corr_e"),
		PathHash: "dead",
	}); err == nil {
		t.Fatal("expected failure on non-zero exit")
	}
}

func TestRenderTimeoutKillsRenderer(t *testing.T) {
	script := writeScript(t, "sleep 30\n")
	r := newTestRunner(t, script, WithTimeout(200*time.Millisecond))

	start := time.Now()
	_, err := r.Render(context.Background(), Request{
		Cycle:    testCycle("corr_f"),
		PathHash: "feed",
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("error = %v, want timeout", err)
	}
	if elapsed > 10*time.Second {
		t.Fatalf("render blocked %v after timeout", elapsed)
	}
}

func TestRenderMissingRuntime(t *testing.T) {
	r := NewRunner(FixedResolver{}, t.TempDir())
	if _, err := r.Render(context.Background(), Request{
		Cycle:    testCycle("corr_g"),
		PathHash: "g00d",
	}); err != ErrNoRuntime {
		t.Fatalf("error = %v, want ErrNoRuntime", err)
	}
}

func TestRenderWritesStableTransferFile(t *testing.T) {
	produced := filepath.Join(t.TempDir(), "v.mp4")
	script := writeScript(t, fmt.Sprintf(
		"touch %q\necho \"File ready at '%s'\"\n", produced, produced))
	r := newTestRunner(t, script)

	if _, err := r.Render(context.Background(), Request{
		Cycle:    testCycle("corr_h"),
		PathHash: "aaaa",
	}); err != nil {
		t.Fatalf("Render error: %v", err)
	}

	transferPath := filepath.Join(r.workDir, "traces", "cycle_corr_h.json")
	tr, err := ReadTransfer(transferPath)
	if err != nil {
		t.Fatalf("stable transfer file missing: %v", err)
	}
	if tr.CorrelationID != "corr_h" || tr.EventCount != 2 {
		t.Fatalf("transfer = %+v", tr)
	}
}

func TestRenderCleansUpTempTransfer(t *testing.T) {
	pathLog := filepath.Join(t.TempDir(), "transfer-path.txt")
	produced := filepath.Join(t.TempDir(), "v.mp4")
	script := writeScript(t, fmt.Sprintf(
		"echo \"$1\" > %q\ntouch %q\necho \"File ready at '%s'\"\n",
		pathLog, produced, produced))
	r := newTestRunner(t, script)

	if _, err := r.Render(context.Background(), Request{
		Cycle:        testCycle("corr_i"),
		PathHash:     "bbbb",
		TempTransfer: true,
	}); err != nil {
		t.Fatalf("Render error: %v", err)
	}

	recorded, err := os.ReadFile(pathLog)
	if err != nil {
		t.Fatalf("renderer never saw the transfer path: %v", err)
	}
	transferPath := strings.TrimSpace(string(recorded))
	if transferPath == "" {
		t.Fatal("empty transfer path")
	}
	if _, err := os.Stat(transferPath); !os.IsNotExist(err) {
		t.Fatalf("temp transfer %s not cleaned up (stat err=%v)", transferPath, err)
	}
}

func TestParseArtifactPath(t *testing.T) {
	cases := []struct {
		output string
		want   string
		ok     bool
	}{
		{"noise\nFile ready at '/tmp/a.mp4'\nmore", "/tmp/a.mp4", true},
		{"Video saved to: /tmp/b.mp4", "/tmp/b.mp4", true},
		{"Video saved to:   /tmp/c.mp4\n", "/tmp/c.mp4", true},
		{"nothing to see here", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := parseArtifactPath(c.output)
		if got != c.want || ok != c.ok {
			t.Fatalf("parseArtifactPath(%q) = %q, %v; want %q, %v",
				c.output, got, ok, c.want, c.ok)
		}
	}
}
