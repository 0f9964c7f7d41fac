package app

import (
	"context"
	"time"

	"github.com/transfa/fundtransfer-service/internal/store"
	"github.com/transfa/fundtransfer-service/pkg/rabbitmq"
	"go.uber.org/zap"
)

const (
	defaultOutboxBatchSize       = 50
	defaultOutboxPollInterval    = 1200 * time.Millisecond
	defaultOutboxStaleProcessing = 2 * time.Minute
)

// OutboxDispatcher relays transfer events written alongside audit records to
// the message broker.
type OutboxDispatcher struct {
	repo                store.OutboxRepository
	publisher           rabbitmq.Publisher
	logger              *zap.Logger
	batchSize           int
	pollInterval        time.Duration
	staleProcessingTime time.Duration
}

func NewOutboxDispatcher(repo store.OutboxRepository, publisher rabbitmq.Publisher, logger *zap.Logger, pollInterval time.Duration) *OutboxDispatcher {
	if pollInterval <= 0 {
		pollInterval = defaultOutboxPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxDispatcher{
		repo:                repo,
		publisher:           publisher,
		logger:              logger,
		batchSize:           defaultOutboxBatchSize,
		pollInterval:        pollInterval,
		staleProcessingTime: defaultOutboxStaleProcessing,
	}
}

// Run polls the outbox until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	defer d.publisher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.flushOnce(ctx); err != nil {
				d.logger.Warn("outbox flush failed", zap.String("component", "outbox"), zap.Error(err))
			}
		}
	}
}

// flushOnce publishes one claimed batch and returns how many were published.
func (d *OutboxDispatcher) flushOnce(ctx context.Context) (int, error) {
	staleAfterSeconds := int(d.staleProcessingTime.Seconds())
	messages, err := d.repo.ClaimOutboxMessages(ctx, d.batchSize, staleAfterSeconds)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, message := range messages {
		if err := d.publisher.Publish(ctx, message.Exchange, message.RoutingKey, message.Payload); err != nil {
			retryAfter := retryDelaySeconds(message.Attempts)
			if markErr := d.repo.MarkOutboxFailed(ctx, message.ID, retryAfter, err.Error()); markErr != nil {
				d.logger.Warn("failed to reschedule outbox message",
					zap.String("component", "outbox"),
					zap.Int64("message_id", message.ID),
					zap.Error(markErr),
				)
			}
			continue
		}
		if err := d.repo.MarkOutboxPublished(ctx, message.ID); err != nil {
			d.logger.Warn("failed to mark outbox message as published",
				zap.String("component", "outbox"),
				zap.Int64("message_id", message.ID),
				zap.Error(err),
			)
			continue
		}
		published++
	}
	return published, nil
}

// retryDelaySeconds doubles per attempt and caps at five minutes.
func retryDelaySeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	delay := 1 << min(attempt, 8)
	if delay > 300 {
		return 300
	}
	return delay
}
