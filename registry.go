package memcache

import (
	"fmt"
	"sync"
)

// The underlying pool is process-wide state keyed by pool name: every client
// constructed with the same name shares one collaborator. The first caller to
// construct a name builds the pool; later callers observe it as already
// initialized and their pool configuration is ignored.

// poolHandle is the stable handle clients hold. Reset swaps the store under
// the handle so every sharing client moves to the rebuilt pool together.
type poolHandle struct {
	name  string
	build func() (Store, error)

	mu    sync.RWMutex
	store Store
}

func (h *poolHandle) get() Store {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store
}

// reset shuts the current pool down and reconstructs it. This is a global,
// disruptive operation: it affects every client sharing the pool name.
func (h *poolHandle) reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.store.Close()
	store, err := h.build()
	if err != nil {
		return fmt.Errorf("memcache: rebuild pool %q: %w", h.name, err)
	}
	h.store = store
	return nil
}

var poolRegistry = struct {
	mu      sync.Mutex
	handles map[string]*poolHandle
}{handles: make(map[string]*poolHandle)}

// acquirePool returns the handle registered under name, constructing the pool
// on first use. Construction is serialized by the registry lock, so exactly
// one caller builds and the rest reuse.
func acquirePool(name string, build func() (Store, error)) (*poolHandle, error) {
	poolRegistry.mu.Lock()
	defer poolRegistry.mu.Unlock()

	if handle, ok := poolRegistry.handles[name]; ok {
		return handle, nil
	}

	store, err := build()
	if err != nil {
		return nil, err
	}

	handle := &poolHandle{name: name, build: build, store: store}
	poolRegistry.handles[name] = handle
	return handle, nil
}

// releasePool removes the handle registered under name and closes its pool.
// The name becomes available for a fresh construction; clients still holding
// the released handle observe a closed store.
func releasePool(name string) {
	poolRegistry.mu.Lock()
	handle := poolRegistry.handles[name]
	delete(poolRegistry.handles, name)
	poolRegistry.mu.Unlock()

	if handle == nil {
		return
	}
	handle.mu.Lock()
	handle.store.Close()
	handle.mu.Unlock()
}

// ResetPool tears down and reconstructs the pool registered under name.
// Unknown names are a no-op.
func ResetPool(name string) error {
	poolRegistry.mu.Lock()
	handle := poolRegistry.handles[name]
	poolRegistry.mu.Unlock()

	if handle == nil {
		return nil
	}
	return handle.reset()
}
