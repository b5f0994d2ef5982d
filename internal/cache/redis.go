package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fastfinder/fastfinder/internal/config"
)

// NewRedisClient creates a Redis client from config.
// Returns nil if Redis is not configured (Addr is empty).
func NewRedisClient(ctx context.Context, conf *config.CacheConfig) (*redis.Client, error) {
	if conf.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:            conf.RedisAddr,
		Password:        conf.RedisPass,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    5,
		MaxIdleConns:    10,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 1 * time.Hour,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
