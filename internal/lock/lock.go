// Package lock provides per-resource advisory locks with TTL. Acquisition
// is non-blocking try-lock: a conflicting call fails fast instead of
// queueing. The in-memory store serves single-instance deployments; the
// GORM-backed store serves multi-instance ones behind the same interface.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koguma/bearcourt/internal/fault"
)

// Store is the backing table for lock entries.
type Store interface {
	// Acquire takes the lock for key with the given TTL. Returns false
	// when the key is already held by a non-expired entry.
	Acquire(key string, ttl time.Duration) (bool, error)
	// Release drops the lock for key. Releasing an unheld key is a no-op.
	Release(key string) error
}

// Sweeper is implemented by stores that can evict expired entries in bulk.
// The cleanup job calls Sweep periodically; stores also expire entries
// lazily during Acquire, so sweeping is hygiene rather than correctness.
type Sweeper interface {
	Sweep() (int, error)
}

// MemoryStore is a process-local lock table.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
}

// NewMemoryStore returns an empty in-memory lock table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]time.Time)}
}

// Acquire implements Store.
func (s *MemoryStore) Acquire(key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiry, held := s.locks[key]; held && expiry.After(now) {
		return false, nil
	}
	s.locks[key] = now.Add(ttl)
	return true, nil
}

// Release implements Store.
func (s *MemoryStore) Release(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

// Sweep removes expired entries and returns how many were evicted.
func (s *MemoryStore) Sweep() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for key, expiry := range s.locks {
		if !expiry.After(now) {
			delete(s.locks, key)
			count++
		}
	}
	return count, nil
}

// Held reports whether key currently has a live entry. Test helper.
func (s *MemoryStore) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, held := s.locks[key]
	return held && expiry.After(time.Now())
}

// WithLock acquires key for at most ttl, runs fn, and releases the lock on
// every exit path. A context cancelled before acquisition never takes the
// lock. A held key surfaces as a LockConflict fault, which callers treat
// as "already in progress — poll again later".
func WithLock[T any](ctx context.Context, store Store, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	acquired, err := store.Acquire(key, ttl)
	if err != nil {
		return zero, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	if !acquired {
		return zero, fault.New(fault.KindLockConflict, fmt.Sprintf("operation on %s already in progress", key))
	}
	defer store.Release(key)

	return fn()
}
