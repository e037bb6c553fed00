// Package redis provides the distributed cycle lock used when several
// engine replicas share one symbol set.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mkryl/sigflow/internal/adapters/config"
	"github.com/mkryl/sigflow/pkg/logger"
)

// Client wraps the RedLock manager plus a plain Redis client for health checks
type Client struct {
	lockManager *redlock.RedLock
	rdb         *redis.Client
}

// New connects to Redis and prepares the RedLock manager
func New(cfg *config.RedisConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addrs := []string{fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)}
	lockManager, err := redlock.NewRedLock(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("address", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
	)

	return &Client{
		lockManager: lockManager,
		rdb:         rdb,
	}, nil
}

// Health checks Redis connectivity
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connections
func (c *Client) Close() error {
	return c.rdb.Close()
}
