// Package prediction persists normalized risk scores keyed by (user, date)
// and answers whether a requested batch is already fully computed.
package prediction

import (
	"context"
	"sort"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// Scorer names the model that produced a record.
type Scorer string

// Known scorers.
const (
	ScorerPersonalized Scorer = "personalized"
	ScorerEnvironment  Scorer = "environment"
)

// Record is one stored prediction.
type Record struct {
	UserID     string
	Date       time.Time
	Risk       float64
	Confidence *float64
	Scorer     Scorer
	UpdatedAt  time.Time
}

// Key identifies a record.
type Key struct {
	UserID string
	Date   time.Time
}

// KeyOf returns the key of r with its date truncated to the day.
func KeyOf(r Record) Key {
	return Key{UserID: r.UserID, Date: calendar.Day(r.Date)}
}

// Store is a persistence backend for prediction records.
type Store interface {
	// Get returns the stored records among the cross product of userIDs and
	// dates. Absent pairs are omitted; order is unspecified.
	Get(ctx context.Context, userIDs []string, dates []time.Time) ([]Record, error)

	// Put writes records, replacing any with the same key. Keys are unique
	// within one call.
	Put(ctx context.Context, records []Record) error
}

// SortByDateUser orders records by date, then user.
func SortByDateUser(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].UserID < records[j].UserID
	})
}
