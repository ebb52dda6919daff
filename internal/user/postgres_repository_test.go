package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/user"
)

var profileColumns = []string{"id", "location_id", "latitude", "longitude", "zip", "attributes", "created_at", "updated_at"}

func TestPostgresRepository_GetProfiles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	var noCoord *float64
	mock.ExpectQuery("SELECT .+ FROM user_profiles WHERE id = ANY").
		WithArgs([]string{"u1", "u2"}).
		WillReturnRows(pgxmock.NewRows(profileColumns).
			AddRow("u1", "", ptr(37.77), ptr(-122.42), "94103", []byte(`{"age":"34","asthma_severity":"mild"}`), now, now).
			AddRow("u2", "nyc", noCoord, noCoord, "", []byte(`{}`), now, now))

	repo := user.NewPostgresRepository(mock)
	got, err := repo.GetProfiles(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "94103", got[0].Zip)
	require.NotNil(t, got[0].Latitude)
	assert.Equal(t, 37.77, *got[0].Latitude)
	assert.Equal(t, "mild", got[0].Attributes["asthma_severity"])
	assert.Nil(t, got[1].Latitude)
	assert.Equal(t, "nyc", got[1].LocationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetProfilesEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	got, err := user.NewPostgresRepository(mock).GetProfiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetProfilesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM user_profiles").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err = user.NewPostgresRepository(mock).GetProfiles(context.Background(), []string{"u1"})
	assert.ErrorContains(t, err, "query profiles")
}

func TestPostgresRepository_ListCheckIns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	recorded := time.Date(2026, 2, 7, 20, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM check_ins WHERE user_id = ANY").
		WithArgs([]string{"u1"}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "date", "wheeze", "cough", "chest_tightness", "exercise_minutes", "recorded_at"}).
			AddRow("u1", day("2026-02-07"), 2.0, 1.0, 0.0, 30.0, recorded))

	got, err := user.NewPostgresRepository(mock).ListCheckIns(context.Background(), []string{"u1"}, day("2026-02-01"), day("2026-02-07"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Symptoms.Score())
	assert.Equal(t, 30.0, got[0].Symptoms.ExerciseMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpsertProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO user_profiles .+ ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs("u1", "", pgxmock.AnyArg(), pgxmock.AnyArg(), "94103", []byte(`{"age":"34"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = user.NewPostgresRepository(mock).UpsertProfile(context.Background(), user.Profile{
		ID: "u1", Zip: "94103", Attributes: map[string]string{"age": "34"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpsertCheckIn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO check_ins .+ ON CONFLICT \\(user_id, date\\) DO UPDATE").
		WithArgs("u1", day("2026-02-07"), 1.0, 0.0, 2.0, 15.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO check_ins").
		WithArgs("ghost", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	repo := user.NewPostgresRepository(mock)
	require.NoError(t, repo.UpsertCheckIn(context.Background(), user.CheckIn{
		UserID: "u1", Date: day("2026-02-07"),
		Symptoms: user.Symptoms{Wheeze: 1, ChestTightness: 2, ExerciseMinutes: 15},
	}))

	err = repo.UpsertCheckIn(context.Background(), user.CheckIn{UserID: "ghost", Date: day("2026-02-07")})
	assert.ErrorIs(t, err, user.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
