package prediction

import (
	"context"
	"sync"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]Record)}
}

var _ Store = (*MemoryStore)(nil)

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userIDs []string, dates []time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, u := range userIDs {
		for _, d := range dates {
			if r, ok := s.records[Key{UserID: u, Date: calendar.Day(d)}]; ok {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		k := KeyOf(r)
		r.Date = k.Date
		s.records[k] = r
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
