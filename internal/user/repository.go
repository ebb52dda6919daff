package user

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// Repository defines the interface for profile and check-in persistence.
type Repository interface {
	// GetProfiles returns the profiles for ids that exist, in id order.
	// Unknown ids are omitted.
	GetProfiles(ctx context.Context, ids []string) ([]Profile, error)

	// ListProfiles returns every profile in id order.
	ListProfiles(ctx context.Context) ([]Profile, error)

	// ListCheckIns returns check-ins of the given users within [start, end],
	// sorted by user then date.
	ListCheckIns(ctx context.Context, userIDs []string, start, end time.Time) ([]CheckIn, error)

	// UpsertProfile creates or replaces a profile.
	UpsertProfile(ctx context.Context, p Profile) error

	// UpsertCheckIn creates or replaces the check-in for (user, date).
	UpsertCheckIn(ctx context.Context, c CheckIn) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	checkIns map[checkInKey]CheckIn
}

// NewInMemoryRepository creates a new in-memory user repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]Profile),
		checkIns: make(map[checkInKey]CheckIn),
	}
}

var _ Repository = (*InMemoryRepository)(nil)

// GetProfiles implements Repository.
func (r *InMemoryRepository) GetProfiles(_ context.Context, ids []string) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var out []Profile
	for _, id := range ids {
		p, ok := r.profiles[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, copyProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListProfiles implements Repository.
func (r *InMemoryRepository) ListProfiles(_ context.Context) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, copyProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListCheckIns implements Repository.
func (r *InMemoryRepository) ListCheckIns(_ context.Context, userIDs []string, start, end time.Time) ([]CheckIn, error) {
	start, end = calendar.Day(start), calendar.Day(end)
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []CheckIn
	for k, c := range r.checkIns {
		if !wanted[k.userID] || k.date.Before(start) || k.date.After(end) {
			continue
		}
		out = append(out, c)
	}
	SortCheckIns(out)
	return out, nil
}

// UpsertProfile implements Repository.
func (r *InMemoryRepository) UpsertProfile(_ context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.profiles[p.ID] = copyProfile(p)
	return nil
}

// UpsertCheckIn implements Repository.
func (r *InMemoryRepository) UpsertCheckIn(_ context.Context, c CheckIn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[c.UserID]; !ok {
		return ErrUserNotFound
	}
	c.Date = calendar.Day(c.Date)
	if c.RecordedAt.IsZero() {
		c.RecordedAt = time.Now().UTC()
	}
	r.checkIns[keyOf(c)] = c
	return nil
}

// SortCheckIns orders check-ins by user then date.
func SortCheckIns(cs []CheckIn) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].UserID != cs[j].UserID {
			return cs[i].UserID < cs[j].UserID
		}
		return cs[i].Date.Before(cs[j].Date)
	})
}

// copyProfile creates a deep copy of a profile.
func copyProfile(p Profile) Profile {
	out := p
	if p.Latitude != nil {
		v := *p.Latitude
		out.Latitude = &v
	}
	if p.Longitude != nil {
		v := *p.Longitude
		out.Longitude = &v
	}
	out.Attributes = maps.Clone(p.Attributes)
	return out
}
