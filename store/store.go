package store

import "sync"

// Store is the persistence contract every governance component depends on.
// Keys are composite identifiers ("<org_id>", "<org_id>:org",
// "<org_id>:agent:<agent_id>") so storage-level isolation matches the
// logical ownership model. Swap implementations for Postgres, etc.
type Store[T any] interface {
	Put(key string, value T) error
	Get(key string) (T, bool, error)
	List(prefix string) ([]T, error)
	Delete(key string) (bool, error)
	Exists(key string) (bool, error)
}

// MemoryStore is a mutex-guarded in-memory Store implementation
type MemoryStore[T any] struct {
	mu   sync.RWMutex
	data map[string]T
	// keys preserves insertion order so List is deterministic
	keys []string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{data: make(map[string]T)}
}

// Put stores or replaces the value at key
func (s *MemoryStore[T]) Put(key string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.data[key] = value
	return nil
}

// Get returns the value at key and whether it exists
func (s *MemoryStore[T]) Get(key string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	return value, ok, nil
}

// List returns all values whose key starts with prefix, in insertion order.
// An empty prefix returns everything.
func (s *MemoryStore[T]) List(prefix string) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make([]T, 0, len(s.keys))
	for _, k := range s.keys {
		if prefix == "" || hasPrefix(k, prefix) {
			values = append(values, s.data[k])
		}
	}
	return values, nil
}

// Delete removes the value at key, reporting whether it existed
func (s *MemoryStore[T]) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return false, nil
	}
	delete(s.data, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true, nil
}

// Exists reports whether key is present
func (s *MemoryStore[T]) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

// Count returns the number of stored entries
func (s *MemoryStore[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
