package environment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/database"
)

// PostgresRepository stores environmental records in environment_days.
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository creates a new PostgreSQL-backed repository.
func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

const selectColumns = `date, location_id, pm25_mean, pm25_max, aqi, temp_min, temp_max,
	humidity_mean, wind_mean, precipitation, pressure_mean,
	pollen_tree, pollen_grass, pollen_weed, allergy_trend, holiday`

// ListRange implements Repository.
func (r *PostgresRepository) ListRange(ctx context.Context, start, end time.Time) ([]DayRecord, error) {
	query := `SELECT ` + selectColumns + `
		FROM environment_days
		WHERE date BETWEEN $1 AND $2
		ORDER BY date, location_id`

	rows, err := r.db.Query(ctx, query, calendar.Day(start), calendar.Day(end))
	if err != nil {
		return nil, fmt.Errorf("query environment days: %w", err)
	}
	defer rows.Close()

	var out []DayRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate environment days: %w", err)
	}
	return out, nil
}

// Upsert implements Repository. Records sharing a key are collapsed, last
// one wins.
func (r *PostgresRepository) Upsert(ctx context.Context, records []DayRecord) error {
	records = dedupe(records)
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	var (
		dates     = make([]time.Time, n)
		locations = make([]string, n)
		cols      = make([][]float64, 13)
		holidays  = make([]bool, n)
	)
	for i := range cols {
		cols[i] = make([]float64, n)
	}
	for i, rec := range records {
		dates[i] = calendar.Day(rec.Date)
		locations[i] = rec.LocationID
		for c, v := range []float64{
			rec.PM25Mean, rec.PM25Max, rec.AQI, rec.TempMin, rec.TempMax,
			rec.HumidityMean, rec.WindMean, rec.Precipitation, rec.PressureMean,
			rec.PollenTree, rec.PollenGrass, rec.PollenWeed, rec.AllergyTrend,
		} {
			cols[c][i] = v
		}
		holidays[i] = rec.Holiday
	}

	query := `INSERT INTO environment_days (` + selectColumns + `, updated_at)
		SELECT t.*, now() FROM unnest(
			$1::date[], $2::text[], $3::float8[], $4::float8[], $5::float8[], $6::float8[], $7::float8[],
			$8::float8[], $9::float8[], $10::float8[], $11::float8[],
			$12::float8[], $13::float8[], $14::float8[], $15::float8[], $16::bool[]
		) AS t
		ON CONFLICT (date, location_id) DO UPDATE SET
			pm25_mean = EXCLUDED.pm25_mean,
			pm25_max = EXCLUDED.pm25_max,
			aqi = EXCLUDED.aqi,
			temp_min = EXCLUDED.temp_min,
			temp_max = EXCLUDED.temp_max,
			humidity_mean = EXCLUDED.humidity_mean,
			wind_mean = EXCLUDED.wind_mean,
			precipitation = EXCLUDED.precipitation,
			pressure_mean = EXCLUDED.pressure_mean,
			pollen_tree = EXCLUDED.pollen_tree,
			pollen_grass = EXCLUDED.pollen_grass,
			pollen_weed = EXCLUDED.pollen_weed,
			allergy_trend = EXCLUDED.allergy_trend,
			holiday = EXCLUDED.holiday,
			updated_at = now()`

	args := []any{dates, locations}
	for _, c := range cols {
		args = append(args, c)
	}
	args = append(args, holidays)

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert environment days: %w", err)
	}
	return nil
}

func dedupe(records []DayRecord) []DayRecord {
	index := make(map[recordKey]int, len(records))
	out := make([]DayRecord, 0, len(records))
	for _, rec := range records {
		k := recordKey{date: calendar.Day(rec.Date), locationID: rec.LocationID}
		if i, ok := index[k]; ok {
			out[i] = rec
			continue
		}
		index[k] = len(out)
		out = append(out, rec)
	}
	return out
}

// scanRecord reads one row, substituting placeholders for NULL columns.
func scanRecord(row pgx.Row) (DayRecord, error) {
	var (
		rec                                          DayRecord
		pmMean, pmMax, aqi, tMin, tMax, hum, wind    *float64
		precip, pressure, tree, grass, weed, allergy *float64
		holiday                                      *bool
	)
	if err := row.Scan(
		&rec.Date, &rec.LocationID, &pmMean, &pmMax, &aqi, &tMin, &tMax,
		&hum, &wind, &precip, &pressure, &tree, &grass, &weed, &allergy, &holiday,
	); err != nil {
		return DayRecord{}, fmt.Errorf("scan environment day: %w", err)
	}

	rec.PM25Mean = valueOr(pmMean, PlaceholderPM25)
	rec.PM25Max = valueOr(pmMax, rec.PM25Mean)
	rec.AQI = valueOr(aqi, PlaceholderAQI)
	rec.TempMin = valueOr(tMin, PlaceholderTempMin)
	rec.TempMax = valueOr(tMax, PlaceholderTempMax)
	rec.HumidityMean = valueOr(hum, PlaceholderHumidity)
	rec.WindMean = valueOr(wind, PlaceholderWind)
	rec.Precipitation = valueOr(precip, PlaceholderPrecip)
	rec.PressureMean = valueOr(pressure, PlaceholderPressure)
	rec.PollenTree = valueOr(tree, PlaceholderPollen)
	rec.PollenGrass = valueOr(grass, PlaceholderPollen)
	rec.PollenWeed = valueOr(weed, PlaceholderPollen)
	rec.AllergyTrend = valueOr(allergy, PlaceholderAllergyTrend)
	if holiday != nil {
		rec.Holiday = *holiday
	} else {
		rec.Holiday = calendar.IsHoliday(calendar.Day(rec.Date))
	}
	rec.Provenance = ProvenancePersisted
	return rec, nil
}
