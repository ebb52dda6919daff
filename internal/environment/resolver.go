package environment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// Strategy is one tier of the resolution chain. Resolve returns records for
// the range or an error when the tier cannot serve it.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, loc Location, start, end time.Time) ([]DayRecord, error)
}

// ResolveObserver is notified of the tier that served each resolution.
type ResolveObserver interface {
	ObserveResolution(ctx context.Context, tier string, synthesizedDays int)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Strategies are tried in order; the synthetic source always backs them.
	Strategies []Strategy
	Observer   ResolveObserver
	Logger     zerolog.Logger
}

// Resolver walks the strategy chain and guarantees a complete result.
type Resolver struct {
	strategies []Strategy
	synthetic  SyntheticSource
	observer   ResolveObserver
	logger     zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{
		strategies: cfg.Strategies,
		observer:   cfg.Observer,
		logger:     cfg.Logger.With().Str("component", "environment.resolver").Logger(),
	}
}

// Resolve returns exactly one record per date from start to end inclusive, in
// date order. It never fails: dates no tier could supply are synthesized.
func (r *Resolver) Resolve(ctx context.Context, loc Location, start, end time.Time) []DayRecord {
	days := calendar.Range(start, end)
	if len(days) == 0 {
		return nil
	}

	tier := string(ProvenanceSynthetic)
	var found []DayRecord
	for _, s := range r.strategies {
		records, err := s.Resolve(ctx, loc, days[0], days[len(days)-1])
		if err == nil && len(records) > 0 {
			found = records
			tier = s.Name()
			break
		}
		r.logger.Debug().
			Err(err).
			Str("strategy", s.Name()).
			Str("location_id", loc.ID).
			Msg("strategy could not resolve range")
	}

	byDate := make(map[time.Time]DayRecord, len(found))
	for _, rec := range found {
		d := calendar.Day(rec.Date)
		if _, dup := byDate[d]; !dup {
			byDate[d] = rec
		}
	}

	out := make([]DayRecord, 0, len(days))
	synthesized := 0
	for _, d := range days {
		rec, ok := byDate[d]
		if !ok {
			rec = r.synthetic.Record(d, loc.Latitude, loc.Longitude)
			synthesized++
		}
		if loc.ID != "" {
			rec.LocationID = loc.ID
		}
		out = append(out, rec)
	}

	r.logger.Debug().
		Str("tier", tier).
		Str("location_id", loc.ID).
		Int("days", len(days)).
		Int("synthesized", synthesized).
		Msg("environment resolved")

	if r.observer != nil {
		r.observer.ObserveResolution(ctx, tier, synthesized)
	}
	return out
}
