package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"error.validation", "error.submission", "error.stream", "error.result_fetch", "moves.empty", "download.disabled"} {
		if !c.Has(key) {
			t.Fatalf("missing default key %s", key)
		}
	}
	got, err := c.Render("download.ready", map[string]any{"Name": "game.pgn", "Size": 8})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Game record ready: game.pgn (8 bytes)" {
		t.Fatalf("unexpected render: %q", got)
	}
	stream, _ := c.Render("error.stream", nil)
	fetch, _ := c.Render("error.result_fetch", nil)
	if stream == fetch || !strings.Contains(fetch, "results are unavailable") {
		t.Fatalf("stream and result fetch messages must differ: %q / %q", stream, fetch)
	}
}

func TestRenderMissingKeyAndData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
	if _, err := c.Render("download.ready", map[string]any{"Name": "x"}); err == nil {
		t.Fatalf("expected missing data key error")
	}
	if got := c.Text("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("Text fallback: %q", got)
	}
}

func TestOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("moves:\n  empty: \"Nothing yet\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("moves.empty", nil); got != "Nothing yet" {
		t.Fatalf("override not applied: %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("moves:\n  empty: \"dup\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestRejectsNonStringLeaves(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("moves:\n  count: 3\n")); err == nil {
		t.Fatalf("expected error for non-string leaf")
	}
}
