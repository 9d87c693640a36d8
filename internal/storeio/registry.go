package storeio

import (
	"fmt"
	"sync"
)

// Registry enforces spec.md §9's non-negotiable invariant: the same
// on-disk store must never be opened for writing twice in one process.
// Rather than gkStore's refcounted global pointer, it is a value-typed
// table that rejects a second mutating open outright, per the
// re-architecture spec.md recommends.
type Registry struct {
	mu    sync.Mutex
	write map[string]bool
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{write: make(map[string]bool)}
}

// AcquireWriter marks path as open-for-writing, failing if it already is.
func (r *Registry) AcquireWriter(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.write[path] {
		return fmt.Errorf("storeio: store %s is already open for writing in this process", path)
	}
	r.write[path] = true
	return nil
}

// ReleaseWriter clears the open-for-writing mark on path. It is a no-op if
// path was not held.
func (r *Registry) ReleaseWriter(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.write, path)
}

// Default is the process-wide registry used by readstore.Open when its
// Opts carry no Registry, mirroring gkStore's single global instance.
var Default = NewRegistry()
