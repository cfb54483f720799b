package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type memoryEntry struct {
	value   []byte
	version int64
}

// MemoryStore keeps documents in a process-local map.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]memoryEntry
	closed bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry)}
}

var errClosed = errors.New("store closed")

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Entry{}, Unavailable(errClosed)
	}
	e, ok := s.data[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Value: append([]byte(nil), e.value...), Version: e.version}, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if err := validateValue(value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Unavailable(errClosed)
	}
	prev := s.data[key]
	s.data[key] = memoryEntry{value: append([]byte(nil), value...), version: prev.version + 1}
	return nil
}

func (s *MemoryStore) CompareAndSet(_ context.Context, key string, value []byte, expected int64) (int64, error) {
	if err := validateValue(value); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, Unavailable(errClosed)
	}
	prev, ok := s.data[key]
	current := int64(0)
	if ok {
		current = prev.version
	}
	if current != expected {
		return current, ErrVersionConflict
	}
	next := expected + 1
	s.data[key] = memoryEntry{value: append([]byte(nil), value...), version: next}
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Unavailable(errClosed)
	}
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Scan(_ context.Context, pattern string) ([]string, error) {
	re := CompilePattern(pattern)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, Unavailable(errClosed)
	}
	keys := make([]string, 0)
	for k := range s.data {
		if re.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Unavailable(errClosed)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
