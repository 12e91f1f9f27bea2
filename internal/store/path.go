package store

import (
	"os"
	"path/filepath"
)

// DefaultRoot returns the feedcache data directory.
// Defaults to ~/.feedcache, falls back to ./.feedcache if home dir unavailable.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".feedcache")
	}
	return filepath.Join(home, ".feedcache")
}

// DefaultDBPath returns the default location of the cache database.
func DefaultDBPath() string {
	return filepath.Join(DefaultRoot(), "cache.db")
}
