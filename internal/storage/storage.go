package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key doesn't exist or has expired
var ErrNotFound = errors.New("key not found")

// Scope partitions keys the way a browser partitions localStorage and
// sessionStorage: durable keys survive logout, session keys do not.
type Scope string

const (
	ScopeDurable Scope = "local"
	ScopeSession Scope = "session"
)

// Key builds the storage key for name within scope.
func Key(scope Scope, name string) string {
	return string(scope) + ":" + name
}

// Store is the per-origin key-value store shared by every execution context
// (main window, secondary window, duplicated tab, CLI process).
//
// Swap and SetIfAbsent must be atomic across all contexts sharing the store;
// the code-exchange guard relies on it.
type Store interface {
	// Get returns ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value. A zero ttl means the key never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Swap atomically replaces the value of key and returns the previous
	// value. existed is false when the key was missing or expired.
	Swap(ctx context.Context, key, value string) (previous string, existed bool, err error)

	// SetIfAbsent writes value only if key is missing. It returns the value
	// now stored and whether this call created it.
	SetIfAbsent(ctx context.Context, key, value string) (actual string, created bool, err error)

	Close() error
}

// Purger is implemented by stores that keep expired entries around until
// swept (memory, SQLite). Redis expires natively.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
