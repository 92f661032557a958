package main

import (
	"fmt"
	"sync"
	"time"
)

// Store is the dedup store: it owns the seen-records and delivery-records.
// Mark operations are idempotent; marking the same key twice is a no-op.
// Implementations must be safe for concurrent use by delivery workers.
type Store interface {
	HasSeen(key string) (bool, error)
	MarkSeen(key string) error
	HasDelivered(key string, chatID int64) (bool, error)
	MarkDelivered(key string, chatID int64) error
	Stats() (StoreStats, error)
	Close() error
}

// StoreStats is the aggregate view used for summary reporting.
type StoreStats struct {
	TotalSeen              int
	TotalDeliveredDistinct int
}

// MemoryStore keeps dedup state in maps. It backs tests and dry runs;
// production uses SQLiteStore.
type MemoryStore struct {
	mu        sync.RWMutex
	seen      map[string]time.Time
	delivered map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:      make(map[string]time.Time),
		delivered: make(map[string]time.Time),
	}
}

func (s *MemoryStore) HasSeen(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok, nil
}

func (s *MemoryStore) MarkSeen(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; !ok {
		s.seen[key] = time.Now()
	}
	return nil
}

func (s *MemoryStore) HasDelivered(key string, chatID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.delivered[deliveryKey(key, chatID)]
	return ok, nil
}

func (s *MemoryStore) MarkDelivered(key string, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dk := deliveryKey(key, chatID)
	if _, ok := s.delivered[dk]; !ok {
		s.delivered[dk] = time.Now()
	}
	return nil
}

func (s *MemoryStore) Stats() (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	distinct := make(map[string]struct{}, len(s.delivered))
	for dk := range s.delivered {
		distinct[listingKeyOf(dk)] = struct{}{}
	}
	return StoreStats{
		TotalSeen:              len(s.seen),
		TotalDeliveredDistinct: len(distinct),
	}, nil
}

func (s *MemoryStore) Close() error { return nil }

func deliveryKey(key string, chatID int64) string {
	return fmt.Sprintf("%s|%d", key, chatID)
}

func listingKeyOf(dk string) string {
	for i := len(dk) - 1; i >= 0; i-- {
		if dk[i] == '|' {
			return dk[:i]
		}
	}
	return dk
}
