package cache

import (
	"context"
	"sync"
	"time"

	"github.com/noro/control-plane/internal/domain/shared"
)

type entry struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore implements shared.IdempotencyStore with a
// plain map. Suitable for single-instance deployments and tests; dedupe
// state is lost on restart, which at-least-once consumers must tolerate
// anyway.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates an in-memory idempotency store and
// starts a background goroutine that evicts expired keys
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}
	store.wg.Add(1)
	go store.cleanupLoop()
	return store
}

// MarkProcessed marks a key as processed with a TTL.
// Returns true if the key was newly marked, false if already processed.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[key]; exists && time.Now().Before(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = entry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// IsProcessed checks if a key has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists || time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for tests)
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
