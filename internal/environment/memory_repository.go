package environment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

type recordKey struct {
	date       time.Time
	locationID string
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[recordKey]DayRecord
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[recordKey]DayRecord)}
}

var _ Repository = (*InMemoryRepository)(nil)

// ListRange implements Repository.
func (r *InMemoryRepository) ListRange(_ context.Context, start, end time.Time) ([]DayRecord, error) {
	start, end = calendar.Day(start), calendar.Day(end)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DayRecord
	for k, rec := range r.records {
		if k.date.Before(start) || k.date.After(end) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out, nil
}

// Upsert implements Repository.
func (r *InMemoryRepository) Upsert(_ context.Context, records []DayRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		rec.Date = calendar.Day(rec.Date)
		r.records[recordKey{date: rec.Date, locationID: rec.LocationID}] = rec
	}
	return nil
}
