package environment

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BackfillConfig configures a Backfiller.
type BackfillConfig struct {
	Source      Strategy
	Repository  Repository
	Concurrency int
	Logger      zerolog.Logger
}

// BackfillResult summarizes a backfill run.
type BackfillResult struct {
	Locations int
	Stored    int
	Failed    int
	Duration  time.Duration
}

// Backfiller copies records from a live source into the persisted store so
// later resolutions are served from the first tier.
type Backfiller struct {
	source      Strategy
	repo        Repository
	concurrency int
	logger      zerolog.Logger
}

// NewBackfiller creates a Backfiller.
func NewBackfiller(cfg BackfillConfig) *Backfiller {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Backfiller{
		source:      cfg.Source,
		repo:        cfg.Repository,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger.With().Str("component", "environment.backfill").Logger(),
	}
}

// Run backfills every location over [start, end]. Per-location failures are
// logged and counted; only context cancellation aborts the run.
func (b *Backfiller) Run(ctx context.Context, locations []Location, start, end time.Time) (*BackfillResult, error) {
	began := time.Now()
	var stored, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, loc := range locations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			records, err := b.source.Resolve(gctx, loc, start, end)
			if err != nil {
				failed.Add(1)
				b.logger.Warn().Err(err).Str("location_id", loc.ID).Msg("backfill fetch failed")
				return nil
			}
			for i := range records {
				records[i].LocationID = loc.ID
			}

			if err := b.repo.Upsert(gctx, records); err != nil {
				failed.Add(1)
				b.logger.Warn().Err(err).Str("location_id", loc.ID).Msg("backfill store failed")
				return nil
			}
			stored.Add(int64(len(records)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BackfillResult{
		Locations: len(locations),
		Stored:    int(stored.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(began),
	}
	b.logger.Info().
		Int("locations", result.Locations).
		Int("stored", result.Stored).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("environment backfill completed")
	return result, nil
}
