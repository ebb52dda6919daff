package environment

import (
	"context"
	"fmt"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// StoreStrategy serves ranges from the persisted environmental store.
type StoreStrategy struct {
	repo Repository
}

// NewStoreStrategy creates a StoreStrategy.
func NewStoreStrategy(repo Repository) *StoreStrategy {
	return &StoreStrategy{repo: repo}
}

// Name implements Strategy.
func (s *StoreStrategy) Name() string { return string(ProvenancePersisted) }

// Resolve returns stored rows for a single location. The requested location
// is used when it has rows, otherwise the first location encountered. The
// result is sufficient when it holds at least min(2, range length) rows.
func (s *StoreStrategy) Resolve(ctx context.Context, loc Location, start, end time.Time) ([]DayRecord, error) {
	rows, err := s.repo.ListRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list stored records: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrInsufficientData
	}

	rows = narrowToLocation(rows, loc.ID)

	need := min(2, calendar.DaysBetween(start, end)+1)
	if len(rows) < need {
		return nil, fmt.Errorf("%w: %d stored rows, need %d", ErrInsufficientData, len(rows), need)
	}

	// The stored holiday flag wins over the computed calendar.
	for i := range rows {
		holiday := rows[i].Holiday
		rows[i].FillCalendar()
		rows[i].Holiday = holiday
		rows[i].Provenance = ProvenancePersisted
	}
	return rows, nil
}

func narrowToLocation(rows []DayRecord, preferred string) []DayRecord {
	target := rows[0].LocationID
	for _, r := range rows {
		if r.LocationID == preferred {
			target = preferred
			break
		}
	}

	out := make([]DayRecord, 0, len(rows))
	for _, r := range rows {
		if r.LocationID == target {
			out = append(out, r)
		}
	}
	return out
}
