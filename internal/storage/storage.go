// Package storage defines the durable key-value capability the study engine
// persists into, with in-memory, PostgreSQL and Redis implementations.
package storage

import (
	"fmt"
	"sort"
	"sync"
)

// Backend is a string-keyed durable store. Read reports ok=false for a key
// that has never been written.
type Backend interface {
	Read(key string) (value string, ok bool, err error)
	Write(key, value string) error
	Delete(key string) error
}

// MemoryBackend is an in-memory Backend for tests and ephemeral sessions.
type MemoryBackend struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]string),
	}
}

func (b *MemoryBackend) Read(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.entries[key]
	return v, ok, nil
}

func (b *MemoryBackend) Write(key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	b.mu.Lock()
	b.entries[key] = value
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

// Keys returns the stored keys in sorted order.
func (b *MemoryBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
