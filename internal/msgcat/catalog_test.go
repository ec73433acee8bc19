package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedMessages(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("status.move", map[string]any{"Move": "e2e4"})
	if err != nil || got != "Move: e2e4" {
		t.Fatalf("Render: %q %v", got, err)
	}
	got, err = c.Render("status.welcome", nil)
	if err != nil || got != "Welcome to Chess Engine Player! Make a move to begin." {
		t.Fatalf("Render: %q %v", got, err)
	}
	if _, err := c.Render("status.move", map[string]any{}); err == nil {
		t.Fatalf("missing template field should fail")
	}
	if _, err := c.Render("status.nope", nil); err == nil {
		t.Fatalf("unknown key should fail")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("status:\n  reset: \"새 게임을 시작합니다.\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("status.reset", nil); got != "새 게임을 시작합니다." {
		t.Fatalf("override not applied: %q", got)
	}
	if got, _ := c.Render("status.undo_none", nil); got != "No moves to undo." {
		t.Fatalf("default lost: %q", got)
	}
}

func TestOverrideDuplicateKey(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("status:\n  reset: x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("status:\n  reset: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected type error")
	}
}
