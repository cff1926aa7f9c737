package storage

import (
	"context"
	"sync"
	"time"
)

// Ensure MemoryStorage implements required interfaces
var _ Store = (*MemoryStorage)(nil)
var _ Purger = (*MemoryStorage)(nil)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStorage keeps everything in process memory. Contexts sharing one
// instance share state, which is how tests model several windows of one
// origin.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStorage creates a new storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]memoryEntry),
	}
}

// lookup must be called with mu held
func (s *MemoryStorage) lookup(key string, now time.Time) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(now) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key, time.Now())
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *MemoryStorage) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Swap(_ context.Context, key, value string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.lookup(key, time.Now())
	s.entries[key] = memoryEntry{value: value}
	return prev.value, existed, nil
}

func (s *MemoryStorage) SetIfAbsent(_ context.Context, key, value string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lookup(key, time.Now()); ok {
		return e.value, false, nil
	}
	s.entries[key] = memoryEntry{value: value}
	return value, true, nil
}

// PurgeExpired drops expired entries and returns how many were removed
func (s *MemoryStorage) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
