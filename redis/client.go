package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/logger"
)

// Nil is returned by reads of a missing key.
var Nil = goredis.Nil

// Client wraps a go-redis client with structured logging.
type Client struct {
	rdb    *goredis.Client
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// New creates a client. No connection is made until the first command.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is disabled")
	}
	if log == nil {
		log = logger.Nop()
	}

	opts := &goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{cfg.DialTimeout, &opts.DialTimeout},
		{cfg.ReadTimeout, &opts.ReadTimeout},
		{cfg.WriteTimeout, &opts.WriteTimeout},
		{cfg.MinRetryBackoff, &opts.MinRetryBackoff},
		{cfg.MaxRetryBackoff, &opts.MaxRetryBackoff},
		{cfg.PoolTimeout, &opts.PoolTimeout},
		{cfg.ConnMaxIdleTime, &opts.ConnMaxIdleTime},
	} {
		if d.raw == "" {
			continue
		}
		if v, err := time.ParseDuration(d.raw); err == nil {
			*d.dst = v
		}
	}

	log.Debug("Redis client created", logger.Fields("addr", cfg.Addr, "db", cfg.DB, "pool_size", cfg.PoolSize))
	return &Client{rdb: goredis.NewClient(opts), log: log, cfg: cfg}, nil
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	pong, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("unexpected redis ping response: %s", pong)
	}
	return nil
}

// Get retrieves a value by key. A missing key returns Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set stores a value with an expiration; 0 means none.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// SetNX stores a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, expiration).Result()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Exists counts how many of keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	return c.rdb.Exists(ctx, keys...).Result()
}

// Close closes the connection pool. Safe to call multiple times.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.log.Info("Closing Redis connection")
	c.closed = true
	return c.rdb.Close()
}

// Unwrap returns the underlying go-redis client for advanced operations.
func (c *Client) Unwrap() *goredis.Client {
	return c.rdb
}

// FromRedis converts a go-redis failure to an AppError. A missing key
// becomes NOT_FOUND for resource/id.
func FromRedis(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if ae, ok := apperrors.AsAppError(err); ok {
		return ae
	}
	if errors.Is(err, goredis.Nil) {
		return apperrors.NotFound(resource, id).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("redis " + resource).WithCause(err)
	}
	return apperrors.ConnectionFailed("redis").WithCause(err)
}
