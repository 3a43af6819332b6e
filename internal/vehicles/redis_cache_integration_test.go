//go:build integration

package vehicles

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	"safetyrelay/pkg/models"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisRosterCache_RoundTrip(t *testing.T) {
	client := setupRedis(t)
	cache := NewRedisRosterCache(client)
	ctx := context.Background()

	roster, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, roster)

	want := []models.Vehicle{{ID: "V1", Name: "Truck 1"}, {ID: "V2", Name: "Truck 2"}}
	require.NoError(t, cache.Store(ctx, want, time.Minute))

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, cache.key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
