// Package main provides the entrypoint for the Airwaycast precompute worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/airwaycast/airwaycast/internal/app"
	"github.com/airwaycast/airwaycast/internal/config"
	"github.com/airwaycast/airwaycast/internal/telemetry"
	"github.com/airwaycast/airwaycast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "airwaycast-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := app.NewLogger(cfg, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Dur("interval", cfg.Worker.Interval).
		Msg("starting Airwaycast worker")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker exited with error")
	}
	log.Info().Msg("worker stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, cfg.TelemetryFor(serviceName, Version))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer services.Close()

	job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
		Config: worker.PrecomputeConfig{
			Concurrency:  cfg.Worker.Concurrency,
			BatchSize:    cfg.Worker.BatchSize,
			Days:         cfg.Pipeline.DefaultDays,
			Timeout:      cfg.Worker.Timeout,
			BackfillDays: cfg.Worker.BackfillDays,
		},
		Logger:     log,
		Runner:     services.Orchestrator,
		Profiles:   services.Users,
		Backfiller: services.Backfiller,
		Live:       services.Live,
		Fallback:   cfg.Pipeline.DefaultLocation(),
	})

	g, ctx := errgroup.WithContext(ctx)

	server := healthServer(cfg.Worker.HealthPort, job)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Worker.Interval)
		defer ticker.Stop()
		for {
			tick(ctx, job, log)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if cfg.Worker.PubSub.Enabled {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSub.ProjectID,
			SubscriptionName: cfg.Worker.PubSub.Subscription,
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log,
		})
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer handler.Close()
		g.Go(func() error {
			return handler.Start(ctx)
		})
	}

	return g.Wait()
}

// tick refreshes stored environment data and then precomputes forecasts.
// Failures are logged and retried on the next tick.
func tick(ctx context.Context, job *worker.PrecomputeJob, log zerolog.Logger) {
	if _, err := job.Backfill(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("environment backfill failed")
	}
	if _, err := job.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("precompute run failed")
	}
}

func healthServer(port string, job *worker.PrecomputeJob) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"metrics": job.MetricsSnapshot(),
		})
	})
	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}
