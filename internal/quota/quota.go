// Package quota enforces the daily cap on AI backend calls. The check runs
// before each call and the commit runs only after success, so failed calls
// do not consume quota. Check and commit are deliberately not one atomic
// step: under heavy contention a few attempts can slip past a sharp limit,
// an accepted approximate-limit policy rather than strict rate limiting.
package quota

import (
	"fmt"
	"sync"
	"time"

	"github.com/koguma/bearcourt/internal/fault"
)

// counterTTL keeps day counters around for one logical day; the key itself
// rolls over at midnight.
const counterTTL = 24 * time.Hour

// CounterStore is the backing store for day-scoped counters.
type CounterStore interface {
	// Get returns the current count for key, zero when absent.
	Get(key string) (int, error)
	// Incr atomically adds one to key's count, starting it at one when
	// absent, and refreshes its TTL.
	Incr(key string, ttl time.Duration) (int, error)
}

// Tracker gates AI calls against a daily limit.
type Tracker struct {
	store CounterStore
	limit int
	now   func() time.Time
}

// NewTracker returns a tracker enforcing limit calls per UTC day. A limit
// of zero or below disables all calls.
func NewTracker(store CounterStore, limit int) *Tracker {
	return &Tracker{store: store, limit: limit, now: time.Now}
}

// DayKey returns the counter key for the current UTC day.
func (t *Tracker) DayKey() string {
	return "ai:daily:" + t.now().UTC().Format("2006-01-02")
}

// CheckAndReserve fails fast with a QuotaExceeded fault when today's count
// has reached the limit. It must be called before every AI invocation so no
// quota is wasted on calls whose results would be discarded.
func (t *Tracker) CheckAndReserve() error {
	count, err := t.store.Get(t.DayKey())
	if err != nil {
		return fmt.Errorf("quota: read counter: %w", err)
	}
	if count >= t.limit {
		return fault.New(fault.KindQuotaExceeded, "daily AI call limit reached")
	}
	return nil
}

// Commit records one consumed call. Call it only after the AI backend call
// actually succeeded.
func (t *Tracker) Commit() error {
	if _, err := t.store.Incr(t.DayKey(), counterTTL); err != nil {
		return fmt.Errorf("quota: increment counter: %w", err)
	}
	return nil
}

// MemoryStore is a process-local counter table.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryCounter
}

type memoryCounter struct {
	count   int
	expires time.Time
}

// NewMemoryStore returns an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryCounter)}
}

// Get implements CounterStore.
func (s *MemoryStore) Get(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expires.Before(time.Now()) {
		return 0, nil
	}
	return entry.count, nil
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.entries[key]
	if !ok || entry.expires.Before(now) {
		entry = memoryCounter{}
	}
	entry.count++
	entry.expires = now.Add(ttl)
	s.entries[key] = entry
	return entry.count, nil
}

// Sweep removes expired counters and returns how many were evicted.
func (s *MemoryStore) Sweep() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for key, entry := range s.entries {
		if entry.expires.Before(now) {
			delete(s.entries, key)
			count++
		}
	}
	return count, nil
}
