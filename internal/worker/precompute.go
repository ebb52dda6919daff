package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/pipeline"
	"github.com/airwaycast/airwaycast/internal/user"
)

// Runner runs the prediction pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// ProfileLister lists every user profile.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]user.Profile, error)
}

// PrecomputeJob refreshes cached forecasts for every user and keeps the
// environmental store warm.
type PrecomputeJob struct {
	config     PrecomputeConfig
	logger     zerolog.Logger
	runner     Runner
	profiles   ProfileLister
	backfiller *environment.Backfiller
	live       environment.Strategy
	fallback   environment.Location
	now        func() time.Time

	metrics *PrecomputeMetrics
}

// PrecomputeMetrics tracks job statistics.
type PrecomputeMetrics struct {
	mu sync.RWMutex

	TotalRuns         int64
	SuccessfulBatches int64
	FailedBatches     int64
	RecordsComputed   int64
	FallbackUsers     int64
	Backfills         int64
	RecordsBackfilled int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// PrecomputeJobConfig holds configuration for creating a PrecomputeJob.
type PrecomputeJobConfig struct {
	Config   PrecomputeConfig
	Logger   zerolog.Logger
	Runner   Runner
	Profiles ProfileLister
	// Backfiller and Live are optional; without them backfill and health
	// check jobs are no-ops.
	Backfiller *environment.Backfiller
	Live       environment.Strategy
	// Fallback is the location of profiles without coordinates.
	Fallback environment.Location
	Now      func() time.Time
}

// NewPrecomputeJob creates a new precompute job.
func NewPrecomputeJob(cfg PrecomputeJobConfig) *PrecomputeJob {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PrecomputeJob{
		config:     cfg.Config.withDefaults(),
		logger:     cfg.Logger.With().Str("component", "worker.precompute").Logger(),
		runner:     cfg.Runner,
		profiles:   cfg.Profiles,
		backfiller: cfg.Backfiller,
		live:       cfg.Live,
		fallback:   cfg.Fallback,
		now:        cfg.Now,
		metrics:    &PrecomputeMetrics{},
	}
}

// PrecomputeResult contains the result of a precompute run.
type PrecomputeResult struct {
	StartTime  time.Time
	Duration   time.Duration
	Users      int
	Batches    int
	Successful int
	Failed     int
	Records    int
	Fallback   int
	Errors     []BatchError
}

// BatchError describes a failed batch.
type BatchError struct {
	UserIDs []string
	Error   string
}

type batchResult struct {
	userIDs  []string
	records  int
	fallback int
	err      error
}

// Run recomputes the default window for every user, bypassing the cache.
func (j *PrecomputeJob) Run(ctx context.Context) (*PrecomputeResult, error) {
	startTime := time.Now()

	profiles, err := j.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	batches := Batches(ids, j.config.BatchSize)

	result := &PrecomputeResult{
		StartTime: startTime,
		Users:     len(ids),
		Batches:   len(batches),
	}

	j.logger.Info().
		Int("users", len(ids)).
		Int("batches", len(batches)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting prediction precompute")

	start := calendar.Day(j.now().UTC())
	batchChan := make(chan []string, len(batches))
	resultsChan := make(chan batchResult, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.batchWorker(ctx, start, batchChan, resultsChan)
		}()
	}

	for _, b := range batches {
		batchChan <- b
	}
	close(batchChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for br := range resultsChan {
		if br.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{UserIDs: br.userIDs, Error: br.err.Error()})
			continue
		}
		result.Successful++
		result.Records += br.records
		result.Fallback += br.fallback
	}

	result.Duration = time.Since(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("records", result.Records).
		Int("fallback_users", result.Fallback).
		Msg("prediction precompute completed")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (j *PrecomputeJob) batchWorker(ctx context.Context, start time.Time, batches <-chan []string, results chan<- batchResult) {
	for ids := range batches {
		select {
		case <-ctx.Done():
			results <- batchResult{userIDs: ids, err: ctx.Err()}
			continue
		default:
		}
		results <- j.runBatch(ctx, start, ids)
	}
}

func (j *PrecomputeJob) runBatch(ctx context.Context, start time.Time, ids []string) batchResult {
	batchCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.runner.Run(batchCtx, pipeline.Request{
		UserIDs:   ids,
		Start:     start,
		Days:      j.config.Days,
		SkipCache: true,
	})
	if err != nil {
		j.logger.Warn().Err(err).Int("users", len(ids)).Msg("precompute batch failed")
		return batchResult{userIDs: ids, err: err}
	}
	if res.StoreFailed {
		return batchResult{userIDs: ids, err: errors.New("predictions not stored")}
	}
	return batchResult{userIDs: ids, records: len(res.Records), fallback: len(res.Fallback)}
}

// Backfill persists live environmental data for every user location, over the
// past BackfillDays and the forecast window.
func (j *PrecomputeJob) Backfill(ctx context.Context) (*environment.BackfillResult, error) {
	if j.backfiller == nil {
		j.logger.Debug().Msg("no backfiller configured, skipping")
		return &environment.BackfillResult{}, nil
	}

	locations, err := j.locations(ctx)
	if err != nil {
		return nil, err
	}

	today := calendar.Day(j.now().UTC())
	total := &environment.BackfillResult{Locations: len(locations)}
	ranges := [][2]time.Time{
		{today.AddDate(0, 0, -j.config.BackfillDays), today.AddDate(0, 0, -1)},
		{today, today.AddDate(0, 0, j.config.Days-1)},
	}
	for _, r := range ranges {
		res, err := j.backfiller.Run(ctx, locations, r[0], r[1])
		if err != nil {
			return nil, err
		}
		total.Stored += res.Stored
		total.Failed += res.Failed
		total.Duration += res.Duration
	}

	j.metrics.mu.Lock()
	j.metrics.Backfills++
	j.metrics.RecordsBackfilled += int64(total.Stored)
	j.metrics.mu.Unlock()
	return total, nil
}

// BackfillRange persists live environmental data for every user location
// between start and end inclusive.
func (j *PrecomputeJob) BackfillRange(ctx context.Context, start, end time.Time) (*environment.BackfillResult, error) {
	if j.backfiller == nil {
		return &environment.BackfillResult{}, nil
	}
	start, end = calendar.Day(start), calendar.Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("backfill range %s..%s is empty", calendar.Format(start), calendar.Format(end))
	}

	locations, err := j.locations(ctx)
	if err != nil {
		return nil, err
	}
	res, err := j.backfiller.Run(ctx, locations, start, end)
	if err != nil {
		return nil, err
	}

	j.metrics.mu.Lock()
	j.metrics.Backfills++
	j.metrics.RecordsBackfilled += int64(res.Stored)
	j.metrics.mu.Unlock()
	return res, nil
}

// HealthCheck verifies the live forecast service answers for the fallback
// location.
func (j *PrecomputeJob) HealthCheck(ctx context.Context) error {
	if j.live == nil {
		return nil
	}
	today := calendar.Day(j.now().UTC())
	if _, err := j.live.Resolve(ctx, j.fallback, today, today); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (j *PrecomputeJob) locations(ctx context.Context) ([]environment.Location, error) {
	profiles, err := j.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	seen := make(map[string]bool)
	var out []environment.Location
	for i := range profiles {
		loc := profiles[i].Location(j.fallback)
		if seen[loc.ID] {
			continue
		}
		seen[loc.ID] = true
		out = append(out, loc)
	}
	if len(out) == 0 {
		out = append(out, j.fallback)
	}
	return out, nil
}

func (j *PrecomputeJob) updateMetrics(result *PrecomputeResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulBatches += int64(result.Successful)
	j.metrics.FailedBatches += int64(result.Failed)
	j.metrics.RecordsComputed += int64(result.Records)
	j.metrics.FallbackUsers += int64(result.Fallback)
	j.metrics.LastRunAt = time.Now()
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PrecomputeJob) GetMetrics() PrecomputeMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PrecomputeMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		SuccessfulBatches: j.metrics.SuccessfulBatches,
		FailedBatches:     j.metrics.FailedBatches,
		RecordsComputed:   j.metrics.RecordsComputed,
		FallbackUsers:     j.metrics.FallbackUsers,
		Backfills:         j.metrics.Backfills,
		RecordsBackfilled: j.metrics.RecordsBackfilled,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PrecomputeJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"successful_batches": m.SuccessfulBatches,
		"failed_batches":     m.FailedBatches,
		"records_computed":   m.RecordsComputed,
		"fallback_users":     m.FallbackUsers,
		"backfills":          m.Backfills,
		"records_backfilled": m.RecordsBackfilled,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_duration":     m.TotalDuration.String(),
	}
}
