package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/gridsync/internal/domain/grid"
)

type committedEntry struct {
	record    grid.CommittedRecord
	expiresAt time.Time
}

// InMemoryCommittedStore keeps committed records in process memory.
// Suitable for a single server instance and for tests.
type InMemoryCommittedStore struct {
	mu        sync.RWMutex
	entries   map[string]committedEntry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryCommittedStore creates a store whose records expire after ttl.
// A zero ttl keeps records until they are overwritten. A background
// goroutine sweeps expired records until Close.
func NewInMemoryCommittedStore(ttl time.Duration) *InMemoryCommittedStore {
	s := &InMemoryCommittedStore{
		entries:  make(map[string]committedEntry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

func committedKey(screen, key string) string {
	return screen + ":" + key
}

// Put replaces the record stored for its screen and key
func (s *InMemoryCommittedStore) Put(_ context.Context, record grid.CommittedRecord) error {
	e := committedEntry{record: record}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[committedKey(record.Screen, record.Key)] = e
	return nil
}

// Get returns the record for screen and key, or grid.ErrCommittedNotFound
func (s *InMemoryCommittedStore) Get(_ context.Context, screen, key string) (grid.CommittedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[committedKey(screen, key)]
	if !ok || s.expired(e) {
		return grid.CommittedRecord{}, grid.ErrCommittedNotFound
	}
	return e.record, nil
}

func (s *InMemoryCommittedStore) expired(e committedEntry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// Size returns the number of stored records, expired ones included
func (s *InMemoryCommittedStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryCommittedStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryCommittedStore) cleanupLoop() {
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

func (s *InMemoryCommittedStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, k)
		}
	}
}

var _ grid.CommittedStore = (*InMemoryCommittedStore)(nil)
