package subscription

import (
	"strings"
	"sync"
)

// Key builds the registry key for a channel and an event kind.
func Key(channel, kind string) string {
	return channel + ":" + kind
}

// SplitKey is the inverse of Key. Kinds never contain ':' so the first
// separator splits the key.
func SplitKey(key string) (channel, kind string) {
	channel, kind, _ = strings.Cut(key, ":")
	return channel, kind
}

type Entry[T any] struct {
	Key   string
	Value T
}

// Registry tracks the subscriptions a session client wants to keep alive.
// It is safe for concurrent use; no method calls out while holding the lock.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Insert stores v under key, replacing any previous value.
func (r *Registry[T]) Insert(key string, v T) {
	r.mu.Lock()
	r.entries[key] = v
	r.mu.Unlock()
}

func (r *Registry[T]) Get(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[key]
	return v, ok
}

func (r *Registry[T]) Remove(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return v, ok
}

// RemoveAllWithPrefix removes and returns every entry whose key starts with prefix.
func (r *Registry[T]) RemoveAllWithPrefix(prefix string) []Entry[T] {
	return r.RemoveFunc(func(key string, _ T) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// RemoveFunc removes and returns every entry for which match reports true.
func (r *Registry[T]) RemoveFunc(match func(key string, v T) bool) []Entry[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Entry[T]
	for k, v := range r.entries {
		if match(k, v) {
			removed = append(removed, Entry[T]{Key: k, Value: v})
			delete(r.entries, k)
		}
	}
	return removed
}

// SnapshotAndDrain empties the registry and returns what it held.
func (r *Registry[T]) SnapshotAndDrain() []Entry[T] {
	r.mu.Lock()
	old := r.entries
	r.entries = make(map[string]T, len(old))
	r.mu.Unlock()

	out := make([]Entry[T], 0, len(old))
	for k, v := range old {
		out = append(out, Entry[T]{Key: k, Value: v})
	}
	return out
}

func (r *Registry[T]) Snapshot() []Entry[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry[T], 0, len(r.entries))
	for k, v := range r.entries {
		out = append(out, Entry[T]{Key: k, Value: v})
	}
	return out
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
