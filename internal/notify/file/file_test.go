package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crimson-sun/tracecast/internal/model"
)

func TestNotifyAppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts.ndjson")

	n, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Notify(context.Background(), model.Artifact{CorrelationID: "corr_1", PathHash: "aa"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening appends rather than truncates.
	n, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := n.Notify(context.Background(), model.Artifact{CorrelationID: "corr_2", PathHash: "bb", Cached: true}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var a model.Artifact
	if err := json.Unmarshal([]byte(lines[1]), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.CorrelationID != "corr_2" || !a.Cached {
		t.Fatalf("artifact = %+v", a)
	}
}

func TestNewBadPath(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing-dir", "out.ndjson")); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}
