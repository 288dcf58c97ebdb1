package site

import (
	"sort"
	"sync"
)

// Storage holds one Store per module. It is cleared at the start of every pass.
type Storage struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// Store is one module's keyed accumulation space.
type Store struct {
	mu     sync.Mutex
	values map[string]any
}

func newStorage() *Storage {
	return &Storage{stores: make(map[string]*Store)}
}

// For returns the store of module, creating it on first use.
func (s *Storage) For(module string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[module]
	if !ok {
		st = &Store{values: make(map[string]any)}
		s.stores[module] = st
	}
	return st
}

// Clear drops every module's state.
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores = make(map[string]*Store)
}

// Get returns the value stored under key.
func (st *Store) Get(key string) (any, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	v, ok := st.values[key]
	return v, ok
}

// Set stores value under key.
func (st *Store) Set(key string, value any) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.values[key] = value
}

// Keys lists stored keys, sorted.
func (st *Store) Keys() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	keys := make([]string, 0, len(st.values))
	for k := range st.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of keys.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.values)
}

// Value returns the value under key, storing init() first when it is absent
// or of another type.
func Value[T any](st *Store, key string, init func() T) T {
	st.mu.Lock()
	defer st.mu.Unlock()
	if v, ok := st.values[key].(T); ok {
		return v
	}
	v := init()
	st.values[key] = v
	return v
}
