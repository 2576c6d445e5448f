package main

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/config"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/logger"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/metrics"
)

const defaultPublishTimeout = 15 * time.Second

type outboxRepository interface {
	FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// gcpPublisher adapts the concrete Pub/Sub publisher to the narrow publish
// surface the drain loop needs.
type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	Repository outboxRepository
	Publisher  publisher
	Metrics    *metrics.OutboxMetrics
}

// Service drains unpublished outbox rows into the domain-event topic. Rows
// keep their insertion order; a failed publish bumps the attempt counter and
// the row is retried on a later pass until max attempts runs out.
type Service struct {
	logg         *logger.Logger
	repo         outboxRepository
	pub          publisher
	metrics      *metrics.OutboxMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}

	outboxCfg := params.Config.Outbox
	batchSize := outboxCfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	maxAttempts := outboxCfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	pollInterval := time.Duration(outboxCfg.PollIntervalMS) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	return &Service{
		logg:         params.Logger,
		repo:         params.Repository,
		pub:          params.Publisher,
		metrics:      params.Metrics,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
		pollInterval: pollInterval,
	}, nil
}

// Run polls until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.drainOnce(ctx); err != nil {
				s.logg.Error(ctx, "outbox drain pass failed", err)
			}
		}
	}
}

// drainOnce publishes one batch. Individual event failures do not stop the
// batch; the row records its error and waits for the next pass.
func (s *Service) drainOnce(ctx context.Context) error {
	events, err := s.repo.FetchUnpublished(s.batchSize, s.maxAttempts)
	if err != nil {
		return err
	}

	for _, event := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.publishOne(ctx, event); err != nil {
			s.metrics.IncFailed()
			evCtx := s.logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID,
				"event_type": event.EventType,
				"attempt":    event.AttemptCount + 1,
			})
			s.logg.Error(evCtx, "failed to publish outbox event", err)
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				s.logg.Error(evCtx, "failed to record publish failure", markErr)
			}
			continue
		}
		if err := s.repo.MarkPublished(event.ID); err != nil {
			// The event went out but the row stays unpublished, so a
			// duplicate delivery follows. Consumers dedupe on event id.
			s.logg.Error(ctx, "failed to mark event published", err)
			continue
		}
		s.metrics.IncPublished()
	}
	return nil
}

func (s *Service) publishOne(ctx context.Context, event models.OutboxEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := s.pub.Publish(publishCtx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       event.ID.String(),
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
		},
	})
	_, err := result.Get(publishCtx)
	return err
}
