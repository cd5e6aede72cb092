// Package daemon provides process lifecycle helpers for the trackerd
// background service: a PID file, a single-instance file lock, and the
// directories both live in.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon process lifecycle.
type Config struct {
	// LockPath is the file lock path used to guarantee a single running
	// instance per cache directory. Default: ~/.cache/trackerd/daemon.lock
	LockPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.cache/trackerd/daemon.pid
	PIDPath string

	// ShutdownGracePeriod is the time SIGTERM handling waits for the
	// indexer/crawler/matcher loops to reach a yield point before exiting.
	ShutdownGracePeriod time.Duration

	// InitialSleep delays the first crawl tick after startup (--initial-sleep).
	InitialSleep time.Duration
}

// DefaultConfig returns a Config with sensible defaults rooted at the
// user's cache directory.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	dir := filepath.Join(home, ".cache", "trackerd")

	return Config{
		LockPath:            filepath.Join(dir, "daemon.lock"),
		PIDPath:             filepath.Join(dir, "daemon.pid"),
		ShutdownGracePeriod: 10 * time.Second,
		InitialSleep:        0,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.LockPath == "" {
		return fmt.Errorf("lock path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	if c.InitialSleep < 0 {
		return fmt.Errorf("initial sleep must not be negative")
	}
	return nil
}

// EnsureDir creates the directories for the lock and PID files.
func (c Config) EnsureDir() error {
	lockDir := filepath.Dir(c.LockPath)
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != lockDir {
		if err := os.MkdirAll(pidDir, 0755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}

	return nil
}
