package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrInjected is returned by operations armed to fail
var ErrInjected = errors.New("injected failure")

// Store is an in-memory checkpoint store. Values are kept as the encoded
// strings the exporter writes, so a round trip exercises the same encoding
// as a durable store.
type Store struct {
	mu        sync.Mutex
	values    map[string]string
	clears    int
	sets      int
	failSetOf map[string]bool
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		values:    make(map[string]string),
		failSetOf: make(map[string]bool),
	}
}

// Get implements exporter.StateStore
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

// Set implements exporter.StateStore
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSetOf[key] {
		return ErrInjected
	}
	s.sets++
	s.values[key] = value
	return nil
}

// ClearAll implements exporter.StateStore
func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.values = make(map[string]string)
	return nil
}

// FailSet makes every later Set of key fail, or succeed again when fail is false
func (s *Store) FailSet(key string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSetOf[key] = fail
}

// Raw returns the stored value of key
func (s *Store) Raw(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// Put stores value under key bypassing failure injection
func (s *Store) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Clears returns how many times ClearAll ran
func (s *Store) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

// Sets returns how many Set calls succeeded
func (s *Store) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}
