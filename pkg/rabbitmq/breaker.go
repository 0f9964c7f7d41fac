package rabbitmq

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBrokerUnavailable is returned while the circuit is open.
var ErrBrokerUnavailable = errors.New("rabbitmq: circuit open")

// BreakerConfig tunes when the circuit trips and how long it stays open.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
}

// BreakerPublisher guards a Publisher with a circuit breaker so a broker outage
// fails fast instead of stalling every publish.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerPublisher(next Publisher, cfg BreakerConfig, logger *zap.Logger) *BreakerPublisher {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "rabbitmq-publisher",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("component", "rabbitmq_producer"),
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerPublisher{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, exchange, routingKey, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBrokerUnavailable
	}
	return err
}

// State reports the current breaker state.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerPublisher) Close() {
	b.next.Close()
}
