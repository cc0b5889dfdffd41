package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// defaultKeyPrefix namespaces webhook dedupe keys in a shared Redis
const defaultKeyPrefix = "webhook:idempotency:"

// RedisIdempotencyStore implements shared.IdempotencyStore using Redis.
// Suitable for multi-instance deployments where webhook deliveries can
// land on any replica.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store
func NewRedisIdempotencyStore(cfg *config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing
// Redis client. Useful for testing or sharing a client across components.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks a key as processed with a TTL.
// SETNX makes the check-and-set atomic across replicas: exactly one
// delivery of a given key observes true.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark key as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks if a key has already been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check processed key: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
