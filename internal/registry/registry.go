// Package registry keeps at most one live in-memory instance per identifier.
//
// Entries are weak: the registry never keeps a value alive on its own. Once
// every caller has dropped its reference and the garbage collector reclaims
// the value, the entry disappears and the next load builds a fresh instance.
package registry

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/sync/singleflight"
)

// Registry maps identifiers to weakly held values of type T.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]weak.Pointer[T]
	loads   singleflight.Group // one hydration in flight per id
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]weak.Pointer[T])}
}

// FindLive returns the live value for id, if any.
func (r *Registry[T]) FindLive(id string) (*T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live(id)
}

func (r *Registry[T]) live(id string) (*T, bool) {
	wp, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	v := wp.Value()
	return v, v != nil
}

// Register records v under id and returns the registered instance. When id
// already maps to a live value, that value is returned and v is ignored.
func (r *Registry[T]) Register(id string, v *T) *T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(id, v)
}

// register must be called with the write lock held.
func (r *Registry[T]) register(id string, v *T) *T {
	r.prune()
	if existing, ok := r.live(id); ok {
		return existing
	}

	wp := weak.Make(v)
	r.entries[id] = wp
	runtime.AddCleanup(v, func(id string) { r.evict(id, wp) }, id)
	return v
}

// LoadOrStore returns the live value for id or, on a miss, calls fetch and
// registers its result. At most one fetch per id is in flight; concurrent
// callers wait for it and share its result. The live check is repeated
// inside the flight, so a fetch never starts while an instance registered by
// an earlier flight is still live, and a fetched value never replaces state
// committed by an instance collected while the fetch ran.
func (r *Registry[T]) LoadOrStore(id string, fetch func() (*T, error)) (*T, error) {
	if v, ok := r.FindLive(id); ok {
		return v, nil
	}

	v, err, _ := r.loads.Do(id, func() (any, error) {
		if v, ok := r.FindLive(id); ok {
			return v, nil
		}
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		return r.Register(id, v), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// Forget drops every entry. Values already handed out stay usable but are
// no longer returned by FindLive.
func (r *Registry[T]) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
}

// Len reports the number of entries, including any whose value was reclaimed
// but not yet pruned.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Prune removes entries whose value has been reclaimed.
func (r *Registry[T]) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
}

func (r *Registry[T]) prune() {
	for id, wp := range r.entries {
		if wp.Value() == nil {
			delete(r.entries, id)
		}
	}
}

// evict removes id only if it still refers to wp; a newer registration
// under the same id is left alone.
func (r *Registry[T]) evict(id string, wp weak.Pointer[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[id] == wp {
		delete(r.entries, id)
	}
}
