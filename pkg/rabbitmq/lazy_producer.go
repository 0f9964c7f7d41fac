package rabbitmq

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LazyProducer dials RabbitMQ on first use and drops the connection after a
// failed publish so the next call redials. The service can therefore boot and
// keep accepting transfers while the broker is down.
type LazyProducer struct {
	url    string
	logger *zap.Logger

	mu       sync.Mutex
	producer *EventProducer
}

func NewLazyProducer(amqpURL string, logger *zap.Logger) *LazyProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LazyProducer{url: amqpURL, logger: logger}
}

func (p *LazyProducer) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.producer == nil {
		producer, err := NewEventProducer(p.url, p.logger)
		if err != nil {
			return err
		}
		p.producer = producer
		p.logger.Info("rabbitmq producer connected", zap.String("component", "rabbitmq_producer"))
	}

	if err := p.producer.Publish(ctx, exchange, routingKey, body); err != nil {
		p.producer.Close()
		p.producer = nil
		return err
	}
	return nil
}

func (p *LazyProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.producer != nil {
		p.producer.Close()
		p.producer = nil
	}
}
