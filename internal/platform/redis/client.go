// Package redis opens the optional shared cache that backs rate-limit
// counters across server instances.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wishguard/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New connects and pings. An empty URL means Redis is not configured and
// yields (nil, nil).
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	override(&opts.DialTimeout, cfg.DialTimeout)
	override(&opts.ReadTimeout, cfg.ReadTimeout)
	override(&opts.WriteTimeout, cfg.WriteTimeout)

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{Client: client}, nil
}

func override(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
