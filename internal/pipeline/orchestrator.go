// Package pipeline sequences environment resolution, feature enrichment,
// scoring and caching into batch risk forecasts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/features"
	"github.com/airwaycast/airwaycast/internal/prediction"
	"github.com/airwaycast/airwaycast/internal/risk"
	"github.com/airwaycast/airwaycast/internal/user"
)

const tracerName = "github.com/airwaycast/airwaycast/internal/pipeline"

// Pipeline errors.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrScoring          = errors.New("scoring failed")
)

// Defaults applied by NewOrchestrator.
const (
	DefaultDays         = 7
	DefaultLookbackDays = 7
)

// Request asks for forecasts of UserIDs over Days dates starting at Start.
type Request struct {
	UserIDs []string
	// Start defaults to today (UTC).
	Start time.Time
	// Days defaults to the orchestrator's window.
	Days int
	// SkipCache forces recomputation.
	SkipCache bool
}

// Result is the outcome of one run.
type Result struct {
	// Records hold one prediction per (user, date) sorted by date then user.
	Records []prediction.Record
	Cached  bool
	// Unknown lists requested users without a profile.
	Unknown []string
	// Fallback lists users scored by the environment-only model.
	Fallback []string
	// MissingColumns lists model columns zero-filled for every row.
	MissingColumns []string
	// StoreFailed reports that computed records could not be cached.
	StoreFailed bool
}

// Resolver supplies environmental records for a location.
type Resolver interface {
	Resolve(ctx context.Context, loc environment.Location, start, end time.Time) []environment.DayRecord
}

// Observer receives run-level measurements.
type Observer interface {
	ObserveRun(ctx context.Context, cached bool, records int, elapsed time.Duration, err error)
	ObserveFallback(ctx context.Context, users int)
	ObserveUpsertFailure(ctx context.Context)
}

// Config configures an Orchestrator.
type Config struct {
	Users        user.Repository
	Resolver     Resolver
	Cache        *prediction.Cache
	Personalized Scorer
	// Environment scores no-history users. Optional.
	Environment Scorer
	// Fallback supplies coordinates for profiles without any.
	Fallback     environment.Location
	LookbackDays int
	DefaultDays  int
	Observer     Observer
	Logger       zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs the prediction pipeline.
type Orchestrator struct {
	users        user.Repository
	resolver     Resolver
	cache        *prediction.Cache
	personalized Scorer
	environment  Scorer
	fallback     environment.Location
	lookback     int
	defaultDays  int
	observer     Observer
	logger       zerolog.Logger
	now          func() time.Time
	tracer       trace.Tracer
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.LookbackDays < 0 {
		cfg.LookbackDays = 0
	} else if cfg.LookbackDays == 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = DefaultDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		users:        cfg.Users,
		resolver:     cfg.Resolver,
		cache:        cfg.Cache,
		personalized: cfg.Personalized,
		environment:  cfg.Environment,
		fallback:     cfg.Fallback,
		lookback:     cfg.LookbackDays,
		defaultDays:  cfg.DefaultDays,
		observer:     cfg.Observer,
		logger:       cfg.Logger.With().Str("component", "pipeline").Logger(),
		now:          cfg.Now,
		tracer:       otel.Tracer(tracerName),
	}
}

// Run computes or fetches forecasts for req.
func (o *Orchestrator) Run(ctx context.Context, req Request) (res *Result, err error) {
	began := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.Int("pipeline.users", len(req.UserIDs)),
		attribute.Int("pipeline.days", req.Days),
		attribute.Bool("pipeline.skip_cache", req.SkipCache),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if o.observer != nil {
			n, cached := 0, false
			if res != nil {
				n, cached = len(res.Records), res.Cached
			}
			o.observer.ObserveRun(ctx, cached, n, time.Since(began), err)
		}
	}()

	if req.Days < 0 {
		return nil, fmt.Errorf("%w: days must be positive", ErrInvalidRequest)
	}
	if req.Days == 0 {
		req.Days = o.defaultDays
	}
	start := calendar.Day(req.Start)
	if req.Start.IsZero() {
		start = calendar.Day(o.now().UTC())
	}
	dates := calendar.Window(start, req.Days)
	end := dates[len(dates)-1]

	profiles, err := o.users.GetProfiles(ctx, dedupe(req.UserIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: load profiles: %w", ErrStoreUnavailable, err)
	}
	result := &Result{Unknown: unknownUsers(req.UserIDs, profiles)}
	if len(result.Unknown) > 0 {
		o.logger.Debug().Strs("user_ids", result.Unknown).Msg("skipping users without profile")
	}
	if len(profiles) == 0 {
		return result, nil
	}
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}

	if !req.SkipCache {
		cached, hit, err := o.cache.Lookup(ctx, ids, dates)
		if err != nil {
			o.logger.Warn().Err(err).Msg("prediction cache unavailable, recomputing")
		} else if hit {
			span.SetAttributes(attribute.Bool("pipeline.cache_hit", true))
			result.Records = cached
			result.Cached = true
			return result, nil
		}
	}

	lookbackStart := start.AddDate(0, 0, -o.lookback)
	env := o.resolveEnvironment(ctx, profiles, lookbackStart, end)

	checkIns, err := o.users.ListCheckIns(ctx, ids, lookbackStart, end)
	if err != nil {
		return nil, fmt.Errorf("%w: load check-ins: %w", ErrStoreUnavailable, err)
	}

	engine := features.Engine{Mode: features.Serving, Fallback: o.fallback}
	rows := engine.Enrich(env, profiles, checkIns)
	window := features.Window(rows, start, end)

	outputs, missing, err := o.personalized.Predict(asModelRows(window))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoring, err)
	}
	if len(missing) > 0 {
		o.logger.Warn().Strs("columns", missing).Msg("model columns missing, zero-filled")
		result.MissingColumns = missing
	}

	now := o.now().UTC()
	preds := make([]prediction.Record, len(window))
	for i, r := range window {
		preds[i] = prediction.Record{
			UserID:     r.UserID,
			Date:       r.Date,
			Risk:       risk.Normalize(outputs[i]),
			Confidence: confidence(outputs[i]),
			Scorer:     prediction.ScorerPersonalized,
			UpdatedAt:  now,
		}
	}

	adjusted, err := ApplyFallback(rows, preds, o.environment)
	if err != nil {
		o.logger.Warn().Err(err).Msg("environment fallback failed, keeping personalized scores")
	}
	result.Fallback = fallbackUsers(adjusted)
	if len(result.Fallback) > 0 && o.observer != nil {
		o.observer.ObserveFallback(ctx, len(result.Fallback))
	}

	if err := o.cache.Upsert(ctx, adjusted); err != nil {
		o.logger.Warn().Err(err).Int("records", len(adjusted)).Msg("failed to store predictions")
		result.StoreFailed = true
		if o.observer != nil {
			o.observer.ObserveUpsertFailure(ctx)
		}
	}

	prediction.SortByDateUser(adjusted)
	result.Records = adjusted

	o.logger.Info().
		Int("users", len(profiles)).
		Int("days", len(dates)).
		Int("records", len(adjusted)).
		Int("fallback_users", len(result.Fallback)).
		Dur("duration", time.Since(began)).
		Msg("predictions computed")
	return result, nil
}

func (o *Orchestrator) resolveEnvironment(ctx context.Context, profiles []user.Profile, start, end time.Time) []environment.DayRecord {
	ctx, span := o.tracer.Start(ctx, "pipeline.resolveEnvironment")
	defer span.End()

	seen := make(map[string]bool)
	var out []environment.DayRecord
	for i := range profiles {
		loc := profiles[i].Location(o.fallback)
		if seen[loc.ID] {
			continue
		}
		seen[loc.ID] = true
		out = append(out, o.resolver.Resolve(ctx, loc, start, end)...)
	}
	span.SetAttributes(attribute.Int("pipeline.locations", len(seen)))
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func unknownUsers(requested []string, profiles []user.Profile) []string {
	known := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		known[p.ID] = true
	}
	var out []string
	for _, id := range dedupe(requested) {
		if !known[id] {
			out = append(out, id)
		}
	}
	return out
}

func fallbackUsers(records []prediction.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if r.Scorer == prediction.ScorerEnvironment && !seen[r.UserID] {
			seen[r.UserID] = true
			out = append(out, r.UserID)
		}
	}
	return out
}
