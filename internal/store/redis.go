package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/privacy"
)

// Redis stores mappings as JSON strings under a key prefix
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	opts.PoolSize = cfg.Redis.PoolSize
	opts.MinIdleConns = cfg.Redis.MinIdleConns

	r := &Redis{
		client: redis.NewClient(opts),
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		logger: log,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		_ = r.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Redis mapping store initialized",
		zap.String("redis_url", maskURL(cfg.Redis.URL)),
		zap.Int("pool_size", cfg.Redis.PoolSize),
		zap.Duration("ttl", cfg.TTL),
	)
	return r, nil
}

// Get fetches all keys in one MGET
func (r *Redis) Get(ctx context.Context, keys ...string) (map[string]privacy.Mapping, error) {
	out := make(map[string]privacy.Mapping, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := r.client.MGet(ctx, r.keys(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read mappings: %w", err)
	}

	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var mapping privacy.Mapping
		if err := json.Unmarshal([]byte(s), &mapping); err != nil {
			// Drop the corrupted entry so it cannot shadow a future write
			r.logger.Error("Failed to unmarshal stored mapping", zap.Error(err))
			r.client.Del(ctx, r.key(keys[i]))
			continue
		}
		out[keys[i]] = mapping
	}
	return out, nil
}

// Set writes every item in one pipeline
func (r *Redis) Set(ctx context.Context, items map[string]privacy.Mapping) error {
	if len(items) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for key, mapping := range items {
		data, err := json.Marshal(mapping)
		if err != nil {
			return fmt.Errorf("failed to marshal mapping: %w", err)
		}
		pipe.Set(ctx, r.key(key), data, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write mappings: %w", err)
	}
	return nil
}

// Remove deletes keys
func (r *Redis) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, r.keys(keys)...).Err(); err != nil {
		return fmt.Errorf("failed to remove mappings: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

func (r *Redis) keys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = r.key(k)
	}
	return out
}
