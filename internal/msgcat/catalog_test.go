package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c := Default()
	got, err := c.Render("status.checkmate", map[string]any{"Winner": "white"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Checkmate. white wins." {
		t.Fatalf("got %q", got)
	}
	if !c.Has("errors.room_full") || c.Has("errors.nope") {
		t.Fatalf("Has mismatch")
	}
}

func TestRenderMissingKeyAndData(t *testing.T) {
	c := Default()
	if _, err := c.Render("errors.nope", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if _, err := c.Render("errors.room_not_found", map[string]any{}); err == nil {
		t.Fatalf("expected error for missing template data")
	}
	if got := c.Text("errors.room_not_found", map[string]any{}, "fallback"); got != "fallback" {
		t.Fatalf("Text fallback %q", got)
	}
	var nilCatalog *Catalog
	if got := nilCatalog.Text("errors.internal", nil, "fb"); got != "fb" {
		t.Fatalf("nil catalog %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.yaml", "errors:\n  room_full: \"Sala cheia.\"\n")
	write("ignored.txt", "errors:\n  internal: nope\n")

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("errors.room_full", nil); got != "Sala cheia." {
		t.Fatalf("override not applied: %q", got)
	}
	if got, _ := c.Render("errors.internal", nil); !strings.HasPrefix(got, "Something went wrong") {
		t.Fatalf("non-yaml file should be ignored: %q", got)
	}

	write("b.yml", "errors:\n  room_full: \"again\"\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.yaml"), []byte("errors:\n  count: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for numeric leaf")
	}
}
