package environment

import (
	"context"
	"time"
)

// Repository persists environmental day records keyed by (date, location).
type Repository interface {
	// ListRange returns stored records with start <= date <= end ordered by
	// date then location.
	ListRange(ctx context.Context, start, end time.Time) ([]DayRecord, error)

	// Upsert inserts or replaces records by (date, location).
	Upsert(ctx context.Context, records []DayRecord) error
}
