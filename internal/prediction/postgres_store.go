package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/database"
)

// PostgresStore stores predictions in the predictions table.
type PostgresStore struct {
	db database.DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, userIDs []string, dates []time.Time) ([]Record, error) {
	if len(userIDs) == 0 || len(dates) == 0 {
		return nil, nil
	}
	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = calendar.Day(d)
	}

	query := `
		SELECT user_id, date, risk, confidence, scorer, updated_at
		FROM predictions
		WHERE user_id = ANY($1) AND date = ANY($2)
	`
	rows, err := s.db.Query(ctx, query, userIDs, days)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r      Record
			scorer string
		)
		if err := rows.Scan(&r.UserID, &r.Date, &r.Risk, &r.Confidence, &scorer, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		r.Date = calendar.Day(r.Date)
		r.Scorer = Scorer(scorer)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

// Put implements Store with a single bulk upsert.
func (s *PostgresStore) Put(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	var (
		users       = make([]string, n)
		dates       = make([]time.Time, n)
		risks       = make([]float64, n)
		confidences = make([]*float64, n)
		scorers     = make([]string, n)
		updated     = make([]time.Time, n)
	)
	for i, r := range records {
		users[i] = r.UserID
		dates[i] = calendar.Day(r.Date)
		risks[i] = r.Risk
		confidences[i] = r.Confidence
		scorers[i] = string(r.Scorer)
		updated[i] = r.UpdatedAt
	}

	query := `
		INSERT INTO predictions (user_id, date, risk, confidence, scorer, updated_at)
		SELECT * FROM unnest($1::text[], $2::date[], $3::float8[], $4::float8[], $5::text[], $6::timestamptz[])
		ON CONFLICT (user_id, date) DO UPDATE SET
			risk = EXCLUDED.risk,
			confidence = EXCLUDED.confidence,
			scorer = EXCLUDED.scorer,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.Exec(ctx, query, users, dates, risks, confidences, scorers, updated); err != nil {
		return fmt.Errorf("upsert predictions: %w", err)
	}
	return nil
}
