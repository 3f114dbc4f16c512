package dailycache

import "sync"

// Key identifies the cache of one pet for one user.
type Key struct {
	UserID string
	PetID  string
}

// Store holds the current snapshot per pet. Readers always observe a complete
// Summary; writers replace it atomically.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]Summary
}

func NewStore() *Store {
	return &Store{entries: make(map[Key]Summary)}
}

// Get returns the snapshot for key.
func (s *Store) Get(key Key) (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Put replaces the snapshot for key.
func (s *Store) Put(key Key, v Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = v
}

// Update applies fn to the current snapshot under the write lock and stores
// the result.
func (s *Store) Update(key Key, fn func(cur Summary, ok bool) Summary) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[key]
	next := fn(cur, ok)
	s.entries[key] = next
	return next
}

// Keys lists the pets with a cached snapshot.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
