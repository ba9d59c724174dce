package locking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/pkg/resilience"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "payments:lock:"

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockerConfig configures the distributed locker
type RedisLockerConfig struct {
	KeyPrefix string
	// TTL caps how long a crashed holder can block others
	TTL time.Duration
}

// DefaultRedisLockerConfig returns a 30s lease under the payments namespace
func DefaultRedisLockerConfig() RedisLockerConfig {
	return RedisLockerConfig{
		KeyPrefix: defaultKeyPrefix,
		TTL:       30 * time.Second,
	}
}

// RedisLocker is a ports.ReferenceLocker shared by every service instance
type RedisLocker struct {
	client  redis.UniversalClient
	logger  *zap.Logger
	backoff resilience.BackoffStrategy
	config  RedisLockerConfig
}

// NewRedisLocker creates a locker on top of an existing client
func NewRedisLocker(client redis.UniversalClient, config RedisLockerConfig, logger *zap.Logger) *RedisLocker {
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultKeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultRedisLockerConfig().TTL
	}
	return &RedisLocker{
		client:  client,
		logger:  logger,
		backoff: resilience.LockBackoff(),
		config:  config,
	}
}

// Lock polls SET NX until it wins the key or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.config.KeyPrefix + key
	token := uuid.NewString()

	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, l.timeout(key, ctxErr)
			}
			return nil, domain.WrapError(domain.ErrorCodeInternalError, "acquire payment lock", err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		timer := time.NewTimer(l.backoff.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, l.timeout(key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	return func() {
		// release must survive a cancelled request context
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("Failed to release payment lock",
				zap.String("key", redisKey),
				zap.Error(err),
			)
		}
	}
}

func (l *RedisLocker) timeout(key string, err error) error {
	return domain.WrapError(domain.ErrorCodeConcurrentModification, "timed out waiting for payment lock", err).
		WithDetail("key", key)
}
