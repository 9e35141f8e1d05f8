// Package storage holds the key-value store submissions are cached in.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrEmptyKey is returned when an operation is given a blank key.
var ErrEmptyKey = errors.New("storage: key is required")

// Store is a text key-value store with JSON-encoded values. A new Set fully
// replaces the previous value under the same key.
type Store interface {
	Set(ctx context.Context, key string, value any) error
	// Get decodes the value under key into dst. A missing key yields
	// (false, nil).
	Get(ctx context.Context, key string, dst any) (bool, error)
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Factory returns the store scoped to one visitor session.
type Factory func(sessionID string) Store

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Set(_ context.Context, key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: failed to encode %s: %w", key, err)
	}
	s.mu.Lock()
	s.values[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	s.mu.RLock()
	data, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("storage: failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.values = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// MemoryFactory hands out one MemoryStore per session id.
func MemoryFactory() Factory {
	var mu sync.Mutex
	stores := make(map[string]*MemoryStore)
	return func(sessionID string) Store {
		mu.Lock()
		defer mu.Unlock()
		s, ok := stores[sessionID]
		if !ok {
			s = NewMemoryStore()
			stores[sessionID] = s
		}
		return s
	}
}
