package catalog

import (
	"sync"
	"time"
)

// Versioned is a cache cell with an explicit version token. Writers bump the
// version on every Set; a reader holding an older token knows its copy is
// stale and refetches. This replaces ambient mutable globals with manual
// invalidation.
type Versioned[T any] struct {
	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	version   int64
}

// Get returns the current value together with its version token.
func (v *Versioned[T]) Get() (T, int64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.version
}

// Set installs a new value and bumps the version.
func (v *Versioned[T]) Set(value T) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	v.fetchedAt = time.Now()
	v.version++
	return v.version
}

// Stale reports whether a held token no longer matches the current version.
func (v *Versioned[T]) Stale(token int64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return token != v.version
}

// FetchedAt returns when the current value was installed.
func (v *Versioned[T]) FetchedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fetchedAt
}
