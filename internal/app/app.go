// Package app wires configuration into the services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/config"
	"github.com/airwaycast/airwaycast/internal/database"
	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/environment/ambee"
	"github.com/airwaycast/airwaycast/internal/environment/openmeteo"
	"github.com/airwaycast/airwaycast/internal/model"
	"github.com/airwaycast/airwaycast/internal/pipeline"
	"github.com/airwaycast/airwaycast/internal/prediction"
	"github.com/airwaycast/airwaycast/internal/provider/resilience"
	"github.com/airwaycast/airwaycast/internal/telemetry"
	"github.com/airwaycast/airwaycast/internal/user"
)

// NewLogger builds the process logger: console output in development, JSON
// otherwise.
func NewLogger(cfg *config.Config, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// App holds the services shared by the API, worker and CLI.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Pool     *pgxpool.Pool
	Redis    goredis.UniversalClient
	Registry *resilience.Registry
	Metrics  *telemetry.PipelineMetrics

	Users        *user.PostgresRepository
	Environment  *environment.PostgresRepository
	Live         *environment.LiveStrategy
	Resolver     *environment.Resolver
	Backfiller   *environment.Backfiller
	Cache        *prediction.Cache
	Orchestrator *pipeline.Orchestrator
}

// New connects to Postgres and, when enabled, Redis, loads the model bundles
// and assembles the pipeline. Redis failures degrade to the Postgres cache.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, Registry: resilience.NewRegistry()}

	dbCfg := cfg.Database.Connection()
	pool, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("database connected")

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, log := a.Config, a.Logger

	personalized, err := model.Load(cfg.Model.PersonalizedPath)
	if err != nil {
		return fmt.Errorf("load personalized model: %w", err)
	}
	var envScorer pipeline.Scorer
	if cfg.Model.EnvironmentPath != "" {
		b, err := model.Load(cfg.Model.EnvironmentPath)
		if err != nil {
			return fmt.Errorf("load environment model: %w", err)
		}
		envScorer = b
	} else {
		log.Warn().Msg("no environment model configured, users without check-ins get personalized scores")
	}

	metrics, err := telemetry.NewPipelineMetrics()
	if err != nil {
		return fmt.Errorf("init pipeline metrics: %w", err)
	}
	a.Metrics = metrics

	httpCfg := resilience.DefaultClientConfig(openmeteo.ProviderName)
	httpCfg.Timeout = cfg.OpenMeteo.Timeout
	httpCfg.MaxRetries = cfg.OpenMeteo.MaxRetries
	httpCfg.Registry = a.Registry
	httpClient := resilience.NewClient(httpCfg)
	a.Registry.Register(openmeteo.ProviderName, httpClient)

	provider := openmeteo.NewClient(openmeteo.ClientConfig{
		ForecastURL:   cfg.OpenMeteo.ForecastURL,
		ArchiveURL:    cfg.OpenMeteo.ArchiveURL,
		AirQualityURL: cfg.OpenMeteo.AirQualityURL,
		HTTPClient:    httpClient,
		Logger:        log,
	})

	var pollen environment.PollenProvider
	if cfg.Ambee.APIKey != "" {
		pollenCfg := resilience.DefaultClientConfig(ambee.ProviderName)
		pollenCfg.Timeout = cfg.Ambee.Timeout
		pollenCfg.Registry = a.Registry
		pollenClient := resilience.NewClient(pollenCfg)
		a.Registry.Register(ambee.ProviderName, pollenClient)

		pollen = ambee.NewClient(ambee.ClientConfig{
			APIKey:     cfg.Ambee.APIKey,
			BaseURL:    cfg.Ambee.BaseURL,
			HTTPClient: pollenClient,
			Logger:     log,
		})
	}

	a.Users = user.NewPostgresRepository(a.Pool)
	a.Environment = environment.NewPostgresRepository(a.Pool)
	a.Live = environment.NewLiveStrategy(environment.LiveStrategyConfig{
		Provider: provider,
		Pollen:   pollen,
		Logger:   log,
	})
	a.Resolver = environment.NewResolver(environment.ResolverConfig{
		Strategies: []environment.Strategy{environment.NewStoreStrategy(a.Environment), a.Live},
		Observer:   metrics,
		Logger:     log,
	})
	a.Backfiller = environment.NewBackfiller(environment.BackfillConfig{
		Source:      a.Live,
		Repository:  a.Environment,
		Concurrency: cfg.Worker.Concurrency,
		Logger:      log,
	})

	var store prediction.Store = prediction.NewPostgresStore(a.Pool)
	if cfg.Redis.Enabled {
		if rdb, err := a.connectRedis(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using postgres prediction cache only")
		} else {
			a.Redis = rdb
			store = prediction.NewTieredStore(prediction.NewRedisStore(rdb, cfg.Redis.TTL), store, log)
		}
	}
	a.Cache = prediction.NewCache(prediction.CacheConfig{Store: store, Logger: log})

	a.Orchestrator = pipeline.NewOrchestrator(pipeline.Config{
		Users:        a.Users,
		Resolver:     a.Resolver,
		Cache:        a.Cache,
		Personalized: personalized,
		Environment:  envScorer,
		Fallback:     cfg.Pipeline.DefaultLocation(),
		LookbackDays: cfg.Pipeline.LookbackDays,
		DefaultDays:  cfg.Pipeline.DefaultDays,
		Observer:     metrics,
		Logger:       log,
	})
	return nil
}

func (a *App) connectRedis(ctx context.Context) (goredis.UniversalClient, error) {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{a.Config.Redis.Addr},
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RedisPinger returns a readiness probe for the Redis tier, or nil when the
// tier is not in use.
func (a *App) RedisPinger() database.Pinger {
	if a.Redis == nil {
		return nil
	}
	return redisPinger{a.Redis}
}

type redisPinger struct{ c goredis.UniversalClient }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

// Close releases connections.
func (a *App) Close() {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn().Err(err).Msg("close connections")
	}
}
