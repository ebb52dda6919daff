package worker_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/pipeline"
	"github.com/airwaycast/airwaycast/internal/prediction"
	"github.com/airwaycast/airwaycast/internal/user"
	"github.com/airwaycast/airwaycast/internal/worker"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }

type fakeRunner struct {
	mu       sync.Mutex
	requests []pipeline.Request
	failFor  string
}

func (r *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	for _, id := range req.UserIDs {
		if id == r.failFor {
			return nil, errors.New("scoring failed")
		}
	}
	res := &pipeline.Result{}
	for _, id := range req.UserIDs {
		for d := 0; d < req.Days; d++ {
			res.Records = append(res.Records, prediction.Record{UserID: id, Date: req.Start.AddDate(0, 0, d)})
		}
	}
	res.Fallback = req.UserIDs[:1]
	return res, nil
}

type fakeSource struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Resolve(_ context.Context, loc environment.Location, start, end time.Time) ([]environment.DayRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, loc.ID+"@"+start.Format("2006-01-02")+".."+end.Format("2006-01-02"))
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []environment.DayRecord
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, environment.DayRecord{Date: d, LocationID: loc.ID})
	}
	return out, nil
}

func seedProfiles(t *testing.T, n int) *user.InMemoryRepository {
	t.Helper()
	repo := user.NewInMemoryRepository()
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		require.NoError(t, repo.UpsertProfile(context.Background(), user.Profile{ID: id, Zip: "9410" + id}))
	}
	return repo
}

func TestBatches(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, worker.Batches(ids, 2))
	assert.Equal(t, [][]string{ids}, worker.Batches(ids, 10))
	assert.Len(t, worker.Batches(ids, 0), 5)
	assert.Nil(t, worker.Batches(nil, 3))
}

func TestDefaultPrecomputeConfig(t *testing.T) {
	cfg := worker.DefaultPrecomputeConfig()

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 7, cfg.Days)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, 14, cfg.BackfillDays)
}

func TestPrecomputeJob_Run(t *testing.T) {
	runner := &fakeRunner{}
	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Config:   worker.PrecomputeConfig{Concurrency: 2, BatchSize: 2, Days: 3},
		Logger:   zerolog.Nop(),
		Runner:   runner,
		Profiles: seedProfiles(t, 5),
		Now:      fixedNow,
	})

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Users)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 3, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 15, result.Records)
	assert.Equal(t, 3, result.Fallback)

	require.Len(t, runner.requests, 3)
	var seen []string
	for _, req := range runner.requests {
		assert.True(t, req.SkipCache)
		assert.Equal(t, 3, req.Days)
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), req.Start)
		seen = append(seen, req.UserIDs...)
	}
	sort.Strings(seen)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRuns)
	assert.Equal(t, int64(3), m.SuccessfulBatches)
	assert.Equal(t, int64(15), m.RecordsComputed)
	assert.Equal(t, int64(15), job.MetricsSnapshot()["records_computed"])
}

func TestPrecomputeJob_RunBatchFailure(t *testing.T) {
	runner := &fakeRunner{failFor: "c"}
	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Config:   worker.PrecomputeConfig{Concurrency: 1, BatchSize: 2, Days: 1},
		Logger:   zerolog.Nop(),
		Runner:   runner,
		Profiles: seedProfiles(t, 4),
		Now:      fixedNow,
	})

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, []string{"c", "d"}, result.Errors[0].UserIDs)
	assert.Equal(t, int64(1), job.GetMetrics().FailedBatches)
}

func TestPrecomputeJob_Backfill(t *testing.T) {
	source := &fakeSource{}
	store := environment.NewInMemoryRepository()
	fallback := environment.NewLocation("", 37.77, -122.42)
	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Config:   worker.PrecomputeConfig{Days: 3, BackfillDays: 2},
		Logger:   zerolog.Nop(),
		Runner:   &fakeRunner{},
		Profiles: seedProfiles(t, 2),
		Backfiller: environment.NewBackfiller(environment.BackfillConfig{
			Source:     source,
			Repository: store,
			Logger:     zerolog.Nop(),
		}),
		Fallback: fallback,
		Now:      fixedNow,
	})

	result, err := job.Backfill(context.Background())
	require.NoError(t, err)

	// Two locations, two past days plus three forecast days each.
	assert.Equal(t, 2, result.Locations)
	assert.Equal(t, 10, result.Stored)
	assert.Zero(t, result.Failed)

	sort.Strings(source.calls)
	assert.Equal(t, []string{
		"zip_9410a@2026-03-08..2026-03-09",
		"zip_9410a@2026-03-10..2026-03-12",
		"zip_9410b@2026-03-08..2026-03-09",
		"zip_9410b@2026-03-10..2026-03-12",
	}, source.calls)

	stored, err := store.ListRange(context.Background(),
		time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, stored, 10)
	assert.Equal(t, int64(1), job.GetMetrics().Backfills)
}

func TestPrecomputeJob_BackfillRange(t *testing.T) {
	source := &fakeSource{}
	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Logger:   zerolog.Nop(),
		Runner:   &fakeRunner{},
		Profiles: seedProfiles(t, 1),
		Backfiller: environment.NewBackfiller(environment.BackfillConfig{
			Source:     source,
			Repository: environment.NewInMemoryRepository(),
			Logger:     zerolog.Nop(),
		}),
		Fallback: environment.NewLocation("", 37.77, -122.42),
		Now:      fixedNow,
	})

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := job.BackfillRange(context.Background(), from, from.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Stored)
	assert.Equal(t, []string{"zip_9410a@2026-01-01..2026-01-04"}, source.calls)

	_, err = job.BackfillRange(context.Background(), from, from.AddDate(0, 0, -1))
	assert.Error(t, err)
}

func TestPrecomputeJob_BackfillWithoutBackfiller(t *testing.T) {
	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Logger:   zerolog.Nop(),
		Runner:   &fakeRunner{},
		Profiles: seedProfiles(t, 1),
	})

	result, err := job.Backfill(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Stored)
}

func TestPrecomputeJob_HealthCheck(t *testing.T) {
	fallback := environment.NewLocation("", 37.77, -122.42)
	source := &fakeSource{}
	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Logger:   zerolog.Nop(),
		Runner:   &fakeRunner{},
		Profiles: seedProfiles(t, 1),
		Live:     source,
		Fallback: fallback,
		Now:      fixedNow,
	})

	require.NoError(t, job.HealthCheck(context.Background()))
	assert.Equal(t, []string{fallback.ID + "@2026-03-10..2026-03-10"}, source.calls)

	source.err = errors.New("upstream down")
	assert.ErrorContains(t, job.HealthCheck(context.Background()), "health check failed")
}
