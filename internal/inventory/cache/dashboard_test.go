package cache

import (
	"context"
	"testing"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type stats struct {
	TotalBatches int64 `json:"total_batches"`
}

func TestDisabledCacheIsNoop(t *testing.T) {
	c, err := NewDashboardCache(context.Background(), config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.Set(context.Background(), "org", stats{TotalBatches: 3}))

	var got stats
	hit, err := c.Get(context.Background(), "org", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{URL: "redis://:secret@cache.internal:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	_, err = buildRedisOptions(config.CacheConfig{URL: "://bad"})
	assert.Error(t, err)
}

func TestRedisDashboardCache_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })

	c := NewRedisDashboardCache(client, time.Minute)

	require.NoError(t, c.Set(ctx, "org-1", stats{TotalBatches: 7}))

	var got stats
	hit, err := c.Get(ctx, "org-1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(7), got.TotalBatches)

	ttl, err := client.TTL(ctx, key("org-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Invalidate(ctx, "org-1"))
	hit, err = c.Get(ctx, "org-1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
