package store_test

import (
	"path/filepath"
	"testing"

	"github.com/hyperengineering/feedcache/internal/store"
)

func TestDefaultDBPath_UnderRoot(t *testing.T) {
	root := store.DefaultRoot()
	path := store.DefaultDBPath()

	if filepath.Dir(path) != root {
		t.Errorf("DefaultDBPath() = %q, want parent %q", path, root)
	}
	if filepath.Base(path) != "cache.db" {
		t.Errorf("DefaultDBPath() base = %q, want cache.db", filepath.Base(path))
	}
}

func TestDefaultRoot_UsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	want := filepath.Join(home, ".feedcache")
	if got := store.DefaultRoot(); got != want {
		t.Errorf("DefaultRoot() = %q, want %q", got, want)
	}
}
