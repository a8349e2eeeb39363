// Package cache keeps per-organization dashboard stats in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	dashboardKeyPrefix = "pharmacy:dashboard:"
	defaultTTL         = time.Minute
)

// DashboardCache stores a JSON document per organization
type DashboardCache interface {
	Get(ctx context.Context, organizationID string, dest any) (bool, error)
	Set(ctx context.Context, organizationID string, value any) error
	Invalidate(ctx context.Context, organizationID string) error
	Close() error
}

type redisDashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopDashboardCache struct{}

// NewDashboardCache connects to Redis, or returns a no-op cache when caching is disabled
func NewDashboardCache(ctx context.Context, cfg config.CacheConfig) (DashboardCache, error) {
	if !cfg.Enabled {
		return NewNoopDashboardCache(), nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisDashboardCache(client, cfg.TTL), nil
}

// NewRedisDashboardCache wraps an existing client
func NewRedisDashboardCache(client *redis.Client, ttl time.Duration) DashboardCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisDashboardCache{client: client, ttl: ttl}
}

// NewNoopDashboardCache returns a cache that never hits
func NewNoopDashboardCache() DashboardCache {
	return &noopDashboardCache{}
}

func (c *redisDashboardCache) Get(ctx context.Context, organizationID string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key(organizationID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode dashboard cache: %w", err)
	}
	return true, nil
}

func (c *redisDashboardCache) Set(ctx context.Context, organizationID string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode dashboard cache: %w", err)
	}

	if err := c.client.Set(ctx, key(organizationID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisDashboardCache) Invalidate(ctx context.Context, organizationID string) error {
	if err := c.client.Del(ctx, key(organizationID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (noopDashboardCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (noopDashboardCache) Set(context.Context, string, any) error        { return nil }
func (noopDashboardCache) Invalidate(context.Context, string) error      { return nil }
func (noopDashboardCache) Close() error                                  { return nil }

func (c *redisDashboardCache) Close() error {
	return c.client.Close()
}

func key(organizationID string) string {
	return dashboardKeyPrefix + organizationID
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.URL != "" {
		opt, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}

	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}
