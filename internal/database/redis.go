package database

import (
	"context"
	"fmt"
	"go-gin-trip-booking/config"

	"github.com/redis/go-redis/v9"
)

// InitRedis 可用性快取與 Redis Streams 佇列共用同一個 client
func InitRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr(), err)
	}

	return rdb, nil
}
