package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedQuotaMessages(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Render("quota.exceeded.daily", map[string]any{"Limit": 3, "FeatureName": "Puzzle Rush sessions"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "3 free Puzzle Rush sessions") {
		t.Fatalf("unexpected message %q", out)
	}
	if _, err := c.Render("quota.exceeded.daily", map[string]any{}); err == nil {
		t.Fatalf("missing data keys must error")
	}
	if got := c.RenderOr("nope", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("error:\n  internal: \"custom\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("error.internal", nil); got != "custom" {
		t.Fatalf("override not applied: %q", got)
	}
	if got, err := c.Render("feature.openings", nil); err != nil || got == "" {
		t.Fatalf("embedded keys must survive overrides")
	}
}

func TestDuplicateOverrideKeys(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("error:\n  internal: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
