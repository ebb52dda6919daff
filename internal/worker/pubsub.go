package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/environment"
)

// Job types accepted on the subscription.
const (
	JobPredictionRefresh   = "prediction_refresh"
	JobEnvironmentBackfill = "environment_backfill"
	JobHealthCheck         = "health_check"
)

// ErrMalformedMessage is returned for payloads that are not valid job JSON.
var ErrMalformedMessage = errors.New("malformed job message")

// ErrUnknownJob is returned for job types the worker does not handle.
var ErrUnknownJob = errors.New("unknown job type")

// JobMessage represents a worker job message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Jobs is the work the dispatcher can trigger.
// PrecomputeJob implements it.
type Jobs interface {
	Run(ctx context.Context) (*PrecomputeResult, error)
	Backfill(ctx context.Context) (*environment.BackfillResult, error)
	HealthCheck(ctx context.Context) error
}

var _ Jobs = (*PrecomputeJob)(nil)

// Dispatcher decodes job messages and runs the matching job.
type Dispatcher struct {
	jobs   Jobs
	logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(jobs Jobs, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{jobs: jobs, logger: logger.With().Str("component", "worker.dispatch").Logger()}
}

// Dispatch runs the job described by data. Returns ErrMalformedMessage or
// ErrUnknownJob for payloads that should not be redelivered.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) (string, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobPredictionRefresh:
		result, err := d.jobs.Run(ctx)
		if err != nil {
			return msg.JobType, err
		}
		if result.Failed > result.Successful {
			return msg.JobType, fmt.Errorf("too many batch failures: %d/%d", result.Failed, result.Batches)
		}
	case JobEnvironmentBackfill:
		result, err := d.jobs.Backfill(ctx)
		if err != nil {
			return msg.JobType, err
		}
		d.logger.Info().
			Int("stored", result.Stored).
			Int("failed", result.Failed).
			Msg("environment backfill completed")
	case JobHealthCheck:
		if err := d.jobs.HealthCheck(ctx); err != nil {
			return msg.JobType, err
		}
	default:
		return msg.JobType, fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
	return msg.JobType, nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 15 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	jobType, err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownJob):
		// Redelivery cannot fix these.
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
		return
	case err != nil:
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", jobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	msg.Ack()
}
