package storeio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// WriteLock is an advisory, non-blocking flock(2) on a file, a
// cross-process complement to the in-process Registry. readstore's
// create and extend modes do not acquire one; Store.Close releases a
// lock only if one was set. It is built on unix.Flock and has no
// fallback for platforms without it.
type WriteLock struct {
	f *os.File
}

// TryWriteLock attempts to acquire an exclusive, non-blocking lock on
// path, creating it if necessary. It returns an error immediately if
// another process already holds the lock rather than blocking, matching
// the "rejects a second open ... rather than reference-counting it" shape
// spec.md recommends for the in-process registry.
func TryWriteLock(path string) (*WriteLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("storeio: open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("storeio: store %s already locked for writing by another process: %w", path, err)
	}
	return &WriteLock{f: f}, nil
}

// Unlock releases the lock and closes the underlying file descriptor.
func (l *WriteLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
