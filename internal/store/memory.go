package store

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/aegis-shield/internal/privacy"
)

type memoryEntry struct {
	mapping privacy.Mapping
	expires time.Time
}

// Memory is an in-process store. A zero TTL keeps entries until removed.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-process store
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns copies of the stored mappings
func (m *Memory) Get(_ context.Context, keys ...string) (map[string]privacy.Mapping, error) {
	now := m.now()
	out := make(map[string]privacy.Mapping, len(keys))

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, key := range keys {
		entry, ok := m.entries[key]
		if !ok || (!entry.expires.IsZero() && now.After(entry.expires)) {
			continue
		}
		out[key] = cloneMapping(entry.mapping)
	}
	return out, nil
}

// Set stores copies of the given mappings
func (m *Memory) Set(_ context.Context, items map[string]privacy.Mapping) error {
	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, mapping := range items {
		m.entries[key] = memoryEntry{mapping: cloneMapping(mapping), expires: expires}
	}
	m.evictExpiredLocked()
	return nil
}

// Remove deletes keys; missing keys are ignored
func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// Close drops every entry
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}

// Len returns the number of entries, expired ones included
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) evictExpiredLocked() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	for key, entry := range m.entries {
		if now.After(entry.expires) {
			delete(m.entries, key)
		}
	}
}
