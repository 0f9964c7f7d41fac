package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter counts events per scope and subject inside a fixed window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// RateLimitError is returned once a subject exceeds its limit.
type RateLimitError struct {
	Scope             string
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded; retry after %ds", e.Scope, e.RetryAfterSeconds)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisRateLimiter implements distributed rate limiting using Redis.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "fundtransfer:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisRateLimiter{
		client: client,
		prefix: trimmedPrefix,
	}
}

func (r *RedisRateLimiter) ConsumeRateLimit(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}

	normalizedScope := strings.TrimSpace(scope)
	normalizedSubject := strings.ToLower(strings.TrimSpace(subject))
	if normalizedScope == "" || normalizedSubject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, normalizedScope, normalizedSubject)
	rawResult, err := rateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}

	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(currentCount), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return int(currentCount), retryAfter, nil
}

// AllowTransfer consumes one unit of the requester's transfer budget. It is
// checked before an attempt starts, so a throttled request is not an attempt.
func (s *Service) AllowTransfer(ctx context.Context, requesterID int64) error {
	return s.consumeRateLimit(ctx, transferRateLimitScope, fmt.Sprintf("%d", requesterID), s.transferRateLimitPerMinute)
}

// consumeRateLimit fails open: limiter outages are logged, never surfaced.
func (s *Service) consumeRateLimit(ctx context.Context, scope, subject string, limit int) error {
	if s.rateLimiter == nil || limit <= 0 {
		return nil
	}

	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, scope, subject, limit, rateLimitWindow)
	if err != nil {
		s.logger.Warn("rate limiter unavailable; allowing request",
			zap.String("component", "rate_limiter"),
			zap.String("scope", scope),
			zap.Error(err),
		)
		return nil
	}
	if count > limit {
		return &RateLimitError{Scope: scope, RetryAfterSeconds: retryAfter}
	}
	return nil
}
