package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// CacheConfig configures a Cache.
type CacheConfig struct {
	Store  Store
	Logger zerolog.Logger
	// Now stamps upserted records. Defaults to time.Now.
	Now func() time.Time
}

// Cache answers complete-or-miss batch lookups over a Store.
type Cache struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewCache creates a Cache.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		store:  cfg.Store,
		logger: cfg.Logger.With().Str("component", "prediction.cache").Logger(),
		now:    cfg.Now,
	}
}

// Lookup reports a hit only when every (user, date) pair of the cross
// product is stored. A hit returns one record per pair sorted by (date,
// user); a partial match is a miss and returns nil.
func (c *Cache) Lookup(ctx context.Context, userIDs []string, dates []time.Time) ([]Record, bool, error) {
	users := uniqueStrings(userIDs)
	days := uniqueDays(dates)
	if len(users) == 0 || len(days) == 0 {
		return nil, false, nil
	}

	found, err := c.store.Get(ctx, users, days)
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}

	wanted := make(map[Key]bool, len(users)*len(days))
	for _, u := range users {
		for _, d := range days {
			wanted[Key{UserID: u, Date: d}] = true
		}
	}

	byKey := make(map[Key]Record, len(found))
	for _, r := range found {
		k := KeyOf(r)
		if wanted[k] {
			r.Date = k.Date
			byKey[k] = r
		}
	}

	if len(byKey) != len(wanted) {
		c.logger.Debug().
			Int("wanted", len(wanted)).
			Int("found", len(byKey)).
			Msg("prediction cache miss")
		return nil, false, nil
	}

	out := make([]Record, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, r)
	}
	SortByDateUser(out)
	return out, true, nil
}

// Upsert writes one record per key, the last input for a key winning, and
// stamps every written record with the current time.
func (c *Cache) Upsert(ctx context.Context, records []Record) error {
	deduped := Dedupe(records)
	if len(deduped) == 0 {
		return nil
	}

	now := c.now().UTC()
	for i := range deduped {
		deduped[i].Date = calendar.Day(deduped[i].Date)
		deduped[i].UpdatedAt = now
		if deduped[i].Scorer == "" {
			deduped[i].Scorer = ScorerPersonalized
		}
	}

	if err := c.store.Put(ctx, deduped); err != nil {
		return fmt.Errorf("cache upsert: %w", err)
	}
	c.logger.Debug().Int("records", len(deduped)).Msg("predictions stored")
	return nil
}

// Dedupe collapses records sharing a key, keeping the last occurrence at the
// position of the first.
func Dedupe(records []Record) []Record {
	index := make(map[Key]int, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := KeyOf(r)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func uniqueDays(in []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(in))
	out := make([]time.Time, 0, len(in))
	for _, t := range in {
		d := calendar.Day(t)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
