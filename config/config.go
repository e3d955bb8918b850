package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jonwraymond/policycache/cachekey"
	"github.com/jonwraymond/policycache/policy"
	"github.com/jonwraymond/policycache/store"
)

// Store kinds selectable via "cache.store".
const (
	StoreNone   = "none"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the process-wide caching configuration. There is exactly one
// active backing store per process; per-scope behavior is controlled by
// the memoization toggles.
type Config struct {
	// Store selects the backing store: "none", "memory", or "redis".
	Store string

	// Namespace prefixes every external cache key. Defaults to the
	// versioned library namespace; hosts override it to control
	// invalidation-by-version-bump themselves.
	Namespace string

	// DefaultTTL applies to cached rules whose Spec does not set one.
	DefaultTTL time.Duration

	// MemoizeInstances toggles scope-held instance reuse.
	MemoizeInstances bool

	// MemoizeResults toggles scope-held result reuse.
	MemoizeResults bool

	// Redis holds connection settings, used when Store is "redis".
	Redis store.RedisConfig
}

// Load reads the caching configuration from v, seeding defaults first.
func Load(v *viper.Viper) (Config, error) {
	v.SetDefault("cache.store", StoreNone)
	v.SetDefault("cache.namespace", cachekey.DefaultNamespace())
	v.SetDefault("cache.defaultTTL", time.Hour)
	v.SetDefault("cache.memoizeInstances", true)
	v.SetDefault("cache.memoizeResults", true)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.dialTimeout", 5*time.Second)
	v.SetDefault("cache.redis.readTimeout", 3*time.Second)
	v.SetDefault("cache.redis.writeTimeout", 3*time.Second)
	v.SetDefault("cache.redis.poolSize", 10)

	cfg := Config{
		Store:            v.GetString("cache.store"),
		Namespace:        v.GetString("cache.namespace"),
		DefaultTTL:       v.GetDuration("cache.defaultTTL"),
		MemoizeInstances: v.GetBool("cache.memoizeInstances"),
		MemoizeResults:   v.GetBool("cache.memoizeResults"),
		Redis: store.RedisConfig{
			Addr:         v.GetString("cache.redis.addr"),
			Password:     v.GetString("cache.redis.password"),
			DB:           v.GetInt("cache.redis.db"),
			DialTimeout:  v.GetDuration("cache.redis.dialTimeout"),
			ReadTimeout:  v.GetDuration("cache.redis.readTimeout"),
			WriteTimeout: v.GetDuration("cache.redis.writeTimeout"),
			PoolSize:     v.GetInt("cache.redis.poolSize"),
			DefaultTTL:   v.GetDuration("cache.defaultTTL"),
		},
	}

	switch cfg.Store {
	case StoreNone, StoreMemory, StoreRedis:
	default:
		return Config{}, fmt.Errorf("config: unknown cache store %q", cfg.Store)
	}
	return cfg, nil
}

// BuildStore constructs the configured backing store. StoreNone yields a
// nil store: rules declared cacheable will fail until one is configured.
func (c Config) BuildStore(logger *zap.Logger) (store.Store, error) {
	switch c.Store {
	case StoreNone, "":
		return nil, nil
	case StoreMemory:
		return store.NewMemory(c.DefaultTTL), nil
	case StoreRedis:
		return store.NewRedis(c.Redis, logger)
	default:
		return nil, fmt.Errorf("config: unknown cache store %q", c.Store)
	}
}

// NewEvaluator wires a ready evaluator from the configuration. Extra
// options are applied last and win over configured ones.
func (c Config) NewEvaluator(logger *zap.Logger, opts ...policy.Option) (*policy.Evaluator, error) {
	s, err := c.BuildStore(logger)
	if err != nil {
		return nil, err
	}

	base := []policy.Option{
		policy.WithKeys(cachekey.NewBuilder(cachekey.WithNamespace(c.Namespace))),
		policy.WithInstanceMemo(c.MemoizeInstances),
		policy.WithResultMemo(c.MemoizeResults),
		policy.WithLogger(logger),
	}
	if s != nil {
		base = append(base, policy.WithStore(s))
	}
	return policy.New(append(base, opts...)...)
}
