package cache

import (
	"fmt"

	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory creates idempotency stores based on configuration
type IdempotencyStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory dedupe
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore creates an idempotency store for webhook deduplication.
// When Redis is enabled in config it is tried first; in-memory is the
// fallback for single-instance deployments.
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(&f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for webhook dedupe but unavailable: %w", err)
	}

	// Webhook providers retry deliveries; without shared dedupe state a
	// retry landing on another replica would be processed twice.
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
