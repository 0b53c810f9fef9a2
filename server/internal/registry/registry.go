package registry

import (
	"iter"
	"sort"
	"sync"
	"time"
)

// Entry is a registered connection together with the time it was registered.
type Entry[C any] struct {
	ID           string
	Conn         C
	RegisteredAt time.Time
}

// Registry is a thread-safe map from connection id to connection handle.
//
// Iteration never holds the lock while the caller works on an entry: All and
// List copy the current entries first, so a slow consumer cannot block
// Register or Unregister on other goroutines.
type Registry[C any] struct {
	mu   sync.RWMutex
	data map[string]*Entry[C]
	now  func() time.Time // injectable for deterministic tests
}

// New creates an empty Registry.
func New[C any]() *Registry[C] {
	return &Registry[C]{
		data: make(map[string]*Entry[C]),
		now:  time.Now,
	}
}

// Register stores conn under id, replacing any previous entry for the same id.
// It reports whether an existing entry was replaced.
func (r *Registry[C]) Register(id string, conn C) (replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced = r.data[id]
	r.data[id] = &Entry[C]{
		ID:           id,
		Conn:         conn,
		RegisteredAt: r.now(),
	}
	return replaced
}

// Unregister removes the entry for id. Removing an unknown id is a no-op;
// the return value reports whether an entry was actually removed.
func (r *Registry[C]) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return false
	}
	delete(r.data, id)
	return true
}

// Get returns the connection registered under id.
func (r *Registry[C]) Get(id string) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.data[id]
	if !ok {
		var zero C
		return zero, false
	}
	return e.Conn, true
}

// All returns a sequence over the connections registered at the time All is
// called. Connections registered afterwards are not yielded; connections
// unregistered afterwards still are, so senders must tolerate closed peers.
func (r *Registry[C]) All() iter.Seq2[string, C] {
	entries := r.snapshot()
	return func(yield func(string, C) bool) {
		for _, e := range entries {
			if !yield(e.ID, e.Conn) {
				return
			}
		}
	}
}

// List returns a copy of all entries ordered by registration time.
func (r *Registry[C]) List() []Entry[C] {
	entries := r.snapshot()
	out := make([]Entry[C], 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

// Count returns the number of registered connections.
func (r *Registry[C]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *Registry[C]) snapshot() []*Entry[C] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry[C], 0, len(r.data))
	for _, e := range r.data {
		out = append(out, e)
	}
	return out
}
