package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jackzampolin/papercheck/internal/exam"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	TTL      time.Duration
	Prefix   string
	Logger   *slog.Logger
}

// Redis stores results as JSON strings. Every failure is logged and
// reported as a miss.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
	counters
}

// NewRedis connects to Redis. The connection is not verified; use Ping.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis cache requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return NewRedisFromClient(client, cfg), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, cfg RedisConfig) *Redis {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "papercheck:analysis:"
	}
	return &Redis{client: client, ttl: cfg.TTL, prefix: prefix, logger: logger}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (*exam.AnalysisResult, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, false
	}
	if err != nil {
		r.errors.Add(1)
		r.misses.Add(1)
		r.logger.Warn("cache get failed, treating as miss", "error", err)
		return nil, false
	}
	var result exam.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		r.errors.Add(1)
		r.misses.Add(1)
		r.logger.Warn("cache entry undecodable, treating as miss", "error", err)
		return nil, false
	}
	r.hits.Add(1)
	return &result, true
}

// Put implements Cache.
func (r *Redis) Put(ctx context.Context, key string, value *exam.AnalysisResult) {
	if value == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		r.errors.Add(1)
		r.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		r.errors.Add(1)
		r.logger.Warn("cache put failed", "error", err)
		return
	}
	r.writes.Add(1)
}

// Stats implements Cache.
func (r *Redis) Stats() Stats {
	return r.snapshot("redis", -1)
}
