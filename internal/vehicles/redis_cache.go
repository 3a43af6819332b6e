package vehicles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"safetyrelay/internal/constants"
	"safetyrelay/pkg/models"
)

type RedisRosterCache struct {
	client *redis.Client
	key    string
}

func NewRedisRosterCache(client *redis.Client) *RedisRosterCache {
	return &RedisRosterCache{client: client, key: constants.CacheKeyVehicleRoster}
}

// Load returns nil, nil on a cache miss.
func (c *RedisRosterCache) Load(ctx context.Context) ([]models.Vehicle, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var roster []models.Vehicle
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("decode cached roster: %w", err)
	}
	return roster, nil
}

func (c *RedisRosterCache) Store(ctx context.Context, roster []models.Vehicle, ttl time.Duration) error {
	data, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}
