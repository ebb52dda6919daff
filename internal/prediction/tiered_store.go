package prediction

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TieredStore reads through a fast front store to a durable back store.
// Writes go to the back store first; front failures are logged, never
// returned.
type TieredStore struct {
	front  Store
	back   Store
	logger zerolog.Logger
}

// NewTieredStore creates a TieredStore.
func NewTieredStore(front, back Store, logger zerolog.Logger) *TieredStore {
	return &TieredStore{
		front:  front,
		back:   back,
		logger: logger.With().Str("component", "prediction.tiered").Logger(),
	}
}

var _ Store = (*TieredStore)(nil)

// Get implements Store. The front answers when it holds every pair; otherwise
// the back store is read and the front is refilled.
func (s *TieredStore) Get(ctx context.Context, userIDs []string, dates []time.Time) ([]Record, error) {
	want := len(uniqueStrings(userIDs)) * len(uniqueDays(dates))

	cached, err := s.front.Get(ctx, userIDs, dates)
	if err != nil {
		s.logger.Warn().Err(err).Msg("front store read failed")
	} else if len(cached) == want {
		return cached, nil
	}

	records, err := s.back.Get(ctx, userIDs, dates)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if err := s.front.Put(ctx, records); err != nil {
			s.logger.Warn().Err(err).Msg("front store refill failed")
		}
	}
	return records, nil
}

// Put implements Store.
func (s *TieredStore) Put(ctx context.Context, records []Record) error {
	if err := s.back.Put(ctx, records); err != nil {
		return err
	}
	if err := s.front.Put(ctx, records); err != nil {
		s.logger.Warn().Err(err).Int("records", len(records)).Msg("front store write failed")
	}
	return nil
}
