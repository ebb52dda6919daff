package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/database"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

const foreignKeyViolation = "23503"

const profileColumns = `id, location_id, latitude, longitude, zip, attributes, created_at, updated_at`

// GetProfiles implements Repository.
func (r *PostgresRepository) GetProfiles(ctx context.Context, ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + profileColumns + `
		FROM user_profiles
		WHERE id = ANY($1)
		ORDER BY id
	`
	return r.queryProfiles(ctx, query, ids)
}

// ListProfiles implements Repository.
func (r *PostgresRepository) ListProfiles(ctx context.Context) ([]Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM user_profiles
		ORDER BY id
	`
	return r.queryProfiles(ctx, query)
}

func (r *PostgresRepository) queryProfiles(ctx context.Context, query string, args ...any) ([]Profile, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		p     Profile
		attrs []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.LocationID,
		&p.Latitude,
		&p.Longitude,
		&p.Zip,
		&attrs,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return Profile{}, fmt.Errorf("decode attributes of %s: %w", p.ID, err)
		}
	}
	return p, nil
}

// ListCheckIns implements Repository.
func (r *PostgresRepository) ListCheckIns(ctx context.Context, userIDs []string, start, end time.Time) ([]CheckIn, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT user_id, date, wheeze, cough, chest_tightness, exercise_minutes, recorded_at
		FROM check_ins
		WHERE user_id = ANY($1) AND date BETWEEN $2 AND $3
		ORDER BY user_id, date
	`

	rows, err := r.db.Query(ctx, query, userIDs, calendar.Day(start), calendar.Day(end))
	if err != nil {
		return nil, fmt.Errorf("query check-ins: %w", err)
	}
	defer rows.Close()

	var out []CheckIn
	for rows.Next() {
		var c CheckIn
		if err := rows.Scan(
			&c.UserID,
			&c.Date,
			&c.Symptoms.Wheeze,
			&c.Symptoms.Cough,
			&c.Symptoms.ChestTightness,
			&c.Symptoms.ExerciseMinutes,
			&c.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan check-in: %w", err)
		}
		c.Date = calendar.Day(c.Date)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check-ins: %w", err)
	}
	return out, nil
}

// UpsertProfile implements Repository.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, p Profile) error {
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	query := `
		INSERT INTO user_profiles (id, location_id, latitude, longitude, zip, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			location_id = EXCLUDED.location_id,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			zip = EXCLUDED.zip,
			attributes = EXCLUDED.attributes,
			updated_at = now()
	`
	if _, err := r.db.Exec(ctx, query, p.ID, p.LocationID, p.Latitude, p.Longitude, p.Zip, encoded); err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}

// UpsertCheckIn implements Repository.
func (r *PostgresRepository) UpsertCheckIn(ctx context.Context, c CheckIn) error {
	query := `
		INSERT INTO check_ins (user_id, date, wheeze, cough, chest_tightness, exercise_minutes, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id, date) DO UPDATE SET
			wheeze = EXCLUDED.wheeze,
			cough = EXCLUDED.cough,
			chest_tightness = EXCLUDED.chest_tightness,
			exercise_minutes = EXCLUDED.exercise_minutes,
			recorded_at = now()
	`
	_, err := r.db.Exec(ctx, query,
		c.UserID,
		calendar.Day(c.Date),
		c.Symptoms.Wheeze,
		c.Symptoms.Cough,
		c.Symptoms.ChestTightness,
		c.Symptoms.ExerciseMinutes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrUserNotFound
		}
		return fmt.Errorf("upsert check-in %s/%s: %w", c.UserID, calendar.Format(c.Date), err)
	}
	return nil
}
