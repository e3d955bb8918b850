package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanCount is the batch size for SCAN during pattern deletion.
const scanCount = 100

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	// DefaultTTL applies to entries written without an explicit TTL.
	// Zero means such entries never expire.
	DefaultTTL time.Duration
}

// Redis is a Store backed by a Redis server, for hosts that share cached
// results across processes. Values are stored as JSON, so results read
// back decode to JSON types (bool, float64, string, map[string]any).
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewRedis dials the server and verifies connectivity.
func NewRedis(cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: failed to connect to redis: %w", err)
	}

	return NewRedisWithClient(client, cfg.DefaultTTL, logger), nil
}

// NewRedisWithClient wraps an existing client. Useful for hosts that
// manage their own client (sentinel, cluster) and for tests.
func NewRedisWithClient(client *redis.Client, defaultTTL time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client:     client,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Fetch returns the stored value for key, computing and storing it on
// miss. Concurrent fetches across processes may each compute; the last
// write wins.
func (s *Redis) Fetch(ctx context.Context, key string, opts Options, compute ComputeFunc) (any, error) {
	raw, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("store: failed to decode cached value for %q: %w", key, err)
		}
		s.logger.Debug("cache hit", zap.String("key", key))
		return value, nil
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("store: failed to read key %q: %w", key, err)
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode value for %q: %w", key, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, key, encoded, ttl).Err(); err != nil {
		return nil, fmt.Errorf("store: failed to write key %q: %w", key, err)
	}

	s.logger.Debug("cache miss", zap.String("key", key), zap.Duration("ttl", ttl))
	return value, nil
}

// DeleteMatched removes every key matching pattern via SCAN, batching
// deletions. pattern uses Redis glob syntax, so the '*' wildcard behaves
// as documented on PatternDeleter.
func (s *Redis) DeleteMatched(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	batch := make([]string, 0, scanCount)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		deleted += int(n)
		batch = batch[:0]
		return err
	}

	iter := s.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanCount {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("store: failed to delete matched keys: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("store: failed to scan pattern %q: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("store: failed to delete matched keys: %w", err)
	}

	s.logger.Debug("pattern deletion", zap.String("pattern", pattern), zap.Int("deleted", deleted))
	return deleted, nil
}

// Close releases the underlying client's resources.
func (s *Redis) Close() error {
	return s.client.Close()
}

// Ensure Redis implements both store interfaces
var (
	_ Store          = (*Redis)(nil)
	_ PatternDeleter = (*Redis)(nil)
)
