package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-papercheck")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-papercheck" {
			t.Errorf("expected path /tmp/test-papercheck, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-papercheck")

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-papercheck/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})

	t.Run("CatalogPath", func(t *testing.T) {
		expected := "/tmp/test-papercheck/knowledge.yaml"
		if dir.CatalogPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.CatalogPath())
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	dir, err := New(filepath.Join(t.TempDir(), "papercheck-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Directory shouldn't exist yet
	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
}

func TestDir_ConfigFile(t *testing.T) {
	dir, _ := New(t.TempDir())

	if got := dir.ConfigFile(""); got != "" {
		t.Errorf("ConfigFile() = %q before a config exists, want search", got)
	}
	if got := dir.ConfigFile("/etc/papercheck.yaml"); got != "/etc/papercheck.yaml" {
		t.Errorf("explicit path not preferred: %q", got)
	}

	if err := os.WriteFile(dir.ConfigPath(), []byte("server:\n  port: \"9000\"\n"), 0o644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
	if got := dir.ConfigFile(""); got != dir.ConfigPath() {
		t.Errorf("ConfigFile() = %q, want %q", got, dir.ConfigPath())
	}
}
