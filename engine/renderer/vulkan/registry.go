package vulkan

import "sync"

/**
 * @brief Maps the opaque handles given out to the renderer onto the Vulkan
 * objects behind them. Handles start at 1 and are never reused, so a stale
 * handle misses instead of aliasing a newer object.
 */
type registry[H ~uint64, V any] struct {
	mu    sync.Mutex
	next  uint64
	items map[H]V
}

func newRegistry[H ~uint64, V any]() *registry[H, V] {
	return &registry[H, V]{items: make(map[H]V)}
}

func (r *registry[H, V]) add(v V) H {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	h := H(r.next)
	r.items[h] = v
	return h
}

func (r *registry[H, V]) get(h H) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.items[h]
	return v, ok
}

func (r *registry[H, V]) remove(h H) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.items[h]
	if ok {
		delete(r.items, h)
	}
	return v, ok
}

// removeIf drops every entry matching fn and returns how many were dropped.
func (r *registry[H, V]) removeIf(fn func(V) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for h, v := range r.items {
		if fn(v) {
			delete(r.items, h)
			n++
		}
	}
	return n
}

func (r *registry[H, V]) each(fn func(H, V)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for h, v := range r.items {
		fn(h, v)
	}
}

func (r *registry[H, V]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.items)
}
