package cli

import (
	"bytes"
	"testing"
)

func TestRootCommandWiring(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "render"} {
		if !names[want] {
			t.Fatalf("missing %q subcommand (have %v)", want, names)
		}
	}

	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Fatal("missing --config flag")
	}
	if cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Fatal("missing --verbose flag")
	}
}

func TestRenderCommandRequiresArgument(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"render"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without trace file argument")
	}
}

func TestRenderCommandMissingFile(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"render", "/nonexistent/trace.json"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing trace file")
	}
}
