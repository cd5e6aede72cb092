package daemon

import (
	"fmt"

	"github.com/gofrs/flock"
)

// InstanceLock guarantees a single running trackerd instance per cache
// directory, independent of the PID file (which is advisory only).
type InstanceLock struct {
	fl *flock.Flock
}

// NewInstanceLock creates a lock at path without acquiring it.
func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{fl: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking.
// Returns false, nil if another process already holds it.
func (l *InstanceLock) TryLock() (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire instance lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *InstanceLock) Unlock() error {
	if !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}
