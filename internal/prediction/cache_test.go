package prediction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/prediction"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(v float64) *float64 { return &v }

var fixed = time.Date(2026, 2, 7, 8, 30, 0, 0, time.UTC)

func newCache(store prediction.Store) *prediction.Cache {
	return prediction.NewCache(prediction.CacheConfig{
		Store:  store,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return fixed },
	})
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, []string, []time.Time) ([]prediction.Record, error) {
	return nil, f.err
}

func (f failingStore) Put(context.Context, []prediction.Record) error { return f.err }

func TestCache_LookupCompleteOrMiss(t *testing.T) {
	ctx := context.Background()
	store := prediction.NewMemoryStore()
	cache := newCache(store)

	require.NoError(t, cache.Upsert(ctx, []prediction.Record{
		{UserID: "u2", Date: day("2026-02-07"), Risk: 2.5},
		{UserID: "u1", Date: day("2026-02-08"), Risk: 3.1},
		{UserID: "u1", Date: day("2026-02-07"), Risk: 1.2},
	}))

	dates := []time.Time{day("2026-02-07"), day("2026-02-08")}

	// u2 lacks 02-08: the whole batch misses.
	got, hit, err := cache.Lookup(ctx, []string{"u1", "u2"}, dates)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, got)

	require.NoError(t, cache.Upsert(ctx, []prediction.Record{{UserID: "u2", Date: day("2026-02-08"), Risk: 4}}))

	got, hit, err = cache.Lookup(ctx, []string{"u2", "u1"}, dates)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 4)

	// Sorted by date, then user.
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, day("2026-02-07"), got[0].Date)
	assert.Equal(t, "u2", got[1].UserID)
	assert.Equal(t, day("2026-02-07"), got[1].Date)
	assert.Equal(t, "u1", got[2].UserID)
	assert.Equal(t, day("2026-02-08"), got[2].Date)
	assert.Equal(t, 4.0, got[3].Risk)
}

func TestCache_LookupDuplicatesAndEmpty(t *testing.T) {
	ctx := context.Background()
	cache := newCache(prediction.NewMemoryStore())
	require.NoError(t, cache.Upsert(ctx, []prediction.Record{{UserID: "u1", Date: day("2026-02-07"), Risk: 2}}))

	got, hit, err := cache.Lookup(ctx, []string{"u1", "u1"}, []time.Time{day("2026-02-07"), day("2026-02-07").Add(5 * time.Hour)})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, got, 1)

	_, hit, err = cache.Lookup(ctx, nil, []time.Time{day("2026-02-07")})
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = cache.Lookup(ctx, []string{"u1"}, nil)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_UpsertIsIdempotentLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := prediction.NewMemoryStore()
	cache := newCache(store)

	batch := []prediction.Record{
		{UserID: "u1", Date: day("2026-02-07"), Risk: 2, Confidence: ptr(0.4)},
		{UserID: "u1", Date: day("2026-02-07"), Risk: 3.5},
		{UserID: "u1", Date: day("2026-02-08"), Risk: 1, Scorer: prediction.ScorerEnvironment},
	}
	require.NoError(t, cache.Upsert(ctx, batch))
	require.NoError(t, cache.Upsert(ctx, batch))
	assert.Equal(t, 2, store.Len())

	got, hit, err := cache.Lookup(ctx, []string{"u1"}, []time.Time{day("2026-02-07"), day("2026-02-08")})
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 3.5, got[0].Risk)
	assert.Nil(t, got[0].Confidence)
	assert.Equal(t, prediction.ScorerPersonalized, got[0].Scorer)
	assert.Equal(t, prediction.ScorerEnvironment, got[1].Scorer)
	for _, r := range got {
		assert.Equal(t, fixed, r.UpdatedAt)
	}
}

func TestCache_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store down")
	cache := newCache(failingStore{err: boom})

	_, _, err := cache.Lookup(ctx, []string{"u1"}, []time.Time{day("2026-02-07")})
	assert.ErrorIs(t, err, boom)

	err = cache.Upsert(ctx, []prediction.Record{{UserID: "u1", Date: day("2026-02-07"), Risk: 1}})
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, cache.Upsert(ctx, nil))
}

func TestDedupe(t *testing.T) {
	out := prediction.Dedupe([]prediction.Record{
		{UserID: "a", Date: day("2026-02-07"), Risk: 1},
		{UserID: "b", Date: day("2026-02-07"), Risk: 2},
		{UserID: "a", Date: day("2026-02-07").Add(time.Hour), Risk: 3},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].UserID)
	assert.Equal(t, 3.0, out[0].Risk)
	assert.Equal(t, "b", out[1].UserID)
}

func TestTieredStore(t *testing.T) {
	ctx := context.Background()
	front := prediction.NewMemoryStore()
	back := prediction.NewMemoryStore()
	tiered := prediction.NewTieredStore(front, back, zerolog.Nop())

	require.NoError(t, back.Put(ctx, []prediction.Record{{UserID: "u1", Date: day("2026-02-07"), Risk: 2}}))
	assert.Equal(t, 0, front.Len())

	got, err := tiered.Get(ctx, []string{"u1"}, []time.Time{day("2026-02-07")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, front.Len(), "front is refilled from back")

	require.NoError(t, tiered.Put(ctx, []prediction.Record{{UserID: "u2", Date: day("2026-02-07"), Risk: 5}}))
	assert.Equal(t, 2, front.Len())
	assert.Equal(t, 2, back.Len())
}

func TestTieredStore_FrontFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	back := prediction.NewMemoryStore()
	tiered := prediction.NewTieredStore(failingStore{err: errors.New("redis down")}, back, zerolog.Nop())

	require.NoError(t, tiered.Put(ctx, []prediction.Record{{UserID: "u1", Date: day("2026-02-07"), Risk: 2}}))
	got, err := tiered.Get(ctx, []string{"u1"}, []time.Time{day("2026-02-07")})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Back store failures are returned.
	failing := prediction.NewTieredStore(prediction.NewMemoryStore(), failingStore{err: errors.New("pg down")}, zerolog.Nop())
	assert.Error(t, failing.Put(ctx, []prediction.Record{{UserID: "u1", Date: day("2026-02-07")}}))
}
