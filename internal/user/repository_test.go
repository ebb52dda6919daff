package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/user"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestInMemoryRepository_Profiles(t *testing.T) {
	repo := user.NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.UpsertProfile(ctx, user.Profile{ID: "b", Attributes: map[string]string{"age": "40"}}))
	require.NoError(t, repo.UpsertProfile(ctx, user.Profile{ID: "a"}))

	got, err := repo.GetProfiles(ctx, []string{"b", "missing", "a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	// Returned profiles are copies.
	got[1].Attributes["age"] = "99"
	again, err := repo.GetProfiles(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, "40", again[0].Attributes["age"])

	all, err := repo.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInMemoryRepository_CheckIns(t *testing.T) {
	repo := user.NewInMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.UpsertProfile(ctx, user.Profile{ID: "u1"}))
	require.NoError(t, repo.UpsertProfile(ctx, user.Profile{ID: "u2"}))

	require.NoError(t, repo.UpsertCheckIn(ctx, user.CheckIn{UserID: "u2", Date: day("2026-02-07"), Symptoms: user.Symptoms{Cough: 1}}))
	require.NoError(t, repo.UpsertCheckIn(ctx, user.CheckIn{UserID: "u1", Date: day("2026-02-08").Add(15 * time.Hour), Symptoms: user.Symptoms{Wheeze: 1}}))
	require.NoError(t, repo.UpsertCheckIn(ctx, user.CheckIn{UserID: "u1", Date: day("2026-02-07"), Symptoms: user.Symptoms{Wheeze: 2}}))
	// Same (user, date) replaces.
	require.NoError(t, repo.UpsertCheckIn(ctx, user.CheckIn{UserID: "u1", Date: day("2026-02-08"), Symptoms: user.Symptoms{Wheeze: 3}}))
	require.NoError(t, repo.UpsertCheckIn(ctx, user.CheckIn{UserID: "u1", Date: day("2026-03-01")}))

	got, err := repo.ListCheckIns(ctx, []string{"u1", "u2"}, day("2026-02-01"), day("2026-02-28"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, day("2026-02-07"), got[0].Date)
	assert.Equal(t, 3.0, got[1].Symptoms.Wheeze)
	assert.Equal(t, "u2", got[2].UserID)

	only, err := repo.ListCheckIns(ctx, []string{"u2"}, day("2026-02-01"), day("2026-02-28"))
	require.NoError(t, err)
	assert.Len(t, only, 1)
}

func TestInMemoryRepository_CheckInUnknownUser(t *testing.T) {
	repo := user.NewInMemoryRepository()
	err := repo.UpsertCheckIn(context.Background(), user.CheckIn{UserID: "ghost", Date: day("2026-02-07")})
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
