// Package shardmap is a string-keyed map split across independently locked
// shards, so operations on keys in different shards never contend.
package shardmap

import (
	"hash/maphash"
	"sync"
)

// DefaultShards is used when New is given a non-positive count.
const DefaultShards = 32

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// Map is safe for concurrent use. All access to a key goes through the lock of
// the shard that owns it.
type Map[V any] struct {
	seed   maphash.Seed
	shards []*shard[V]
}

// New creates a Map with n shards.
func New[V any](n int) *Map[V] {
	if n <= 0 {
		n = DefaultShards
	}
	m := &Map[V]{
		seed:   maphash.MakeSeed(),
		shards: make([]*shard[V], n),
	}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return m
}

func (m *Map[V]) shardFor(key string) *shard[V] {
	h := maphash.String(m.seed, key)
	return m.shards[h%uint64(len(m.shards))]
}

// Get returns the value for key under the shard read lock.
func (m *Map[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	return v, ok
}

// Update runs fn under the shard write lock. fn receives the current value and
// whether it exists; it returns the value to store and whether to keep it.
// Returning keep=false deletes the key.
func (m *Map[V]) Update(key string, fn func(cur V, exists bool) (next V, keep bool)) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.items[key]
	next, keep := fn(cur, exists)
	if keep {
		s.items[key] = next
	} else if exists {
		delete(s.items, key)
	}
}

// Delete removes key and reports whether it was present.
func (m *Map[V]) Delete(key string) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[key]
	delete(s.items, key)
	return ok
}

// DeleteIf removes every entry for which pred returns true, one shard at a
// time, and returns how many were removed.
func (m *Map[V]) DeleteIf(pred func(key string, v V) bool) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.items {
			if pred(k, v) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Range calls fn for every entry until fn returns false. Each shard is read
// locked while it is visited; fn must not call back into the Map.
func (m *Map[V]) Range(fn func(key string, v V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Len returns the total number of entries.
func (m *Map[V]) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}
