package cache

import (
	"context"
	"errors"
	"fmt"
	"go-gin-trip-booking/internal/model"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type ScheduleAvailabilityCache interface {
	// 寫入：只在版本（updated_at）比快取新時覆蓋
	Set(ctx context.Context, schedule *model.Schedule) error
	Get(ctx context.Context, scheduleID uuid.UUID) (*model.ScheduleAvailability, error)
	Invalidate(ctx context.Context, scheduleID uuid.UUID) error
}

type RedisScheduleAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScheduleAvailabilityCache(client *redis.Client, ttl time.Duration) ScheduleAvailabilityCache {
	return &RedisScheduleAvailabilityCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisScheduleAvailabilityCache) key(scheduleID uuid.UUID) string {
	return fmt.Sprintf("schedule:%s:availability", scheduleID)
}

// 交易提交後才寫入快取，多個請求可能亂序抵達，以版本號避免舊值蓋掉新值
var setIfNewer = redis.NewScript(`
	local key = KEYS[1]
	local version = tonumber(ARGV[1])

	local current = redis.call('HGET', key, 'version')
	if current and tonumber(current) >= version then
		return 0
	end

	redis.call('HSET', key,
		'version', ARGV[1],
		'capacity', ARGV[2],
		'booked_count', ARGV[3],
		'is_active', ARGV[4])
	redis.call('PEXPIRE', key, ARGV[5])
	return 1
`)

func (c *RedisScheduleAvailabilityCache) Set(ctx context.Context, schedule *model.Schedule) error {
	isActive := 0
	if schedule.IsActive {
		isActive = 1
	}
	return setIfNewer.Run(ctx, c.client, []string{c.key(schedule.ID)},
		schedule.UpdatedAt.UnixNano(),
		schedule.Capacity,
		schedule.BookedCount,
		isActive,
		c.ttl.Milliseconds(),
	).Err()
}

func (c *RedisScheduleAvailabilityCache) Get(ctx context.Context, scheduleID uuid.UUID) (*model.ScheduleAvailability, error) {
	result, err := c.client.HGetAll(ctx, c.key(scheduleID)).Result()
	if err != nil {
		return nil, err
	}

	// 檢查 key 是否存在
	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	capacity, err := strconv.Atoi(result["capacity"])
	if err != nil {
		return nil, fmt.Errorf("invalid capacity: %w", err)
	}
	booked, err := strconv.Atoi(result["booked_count"])
	if err != nil {
		return nil, fmt.Errorf("invalid booked_count: %w", err)
	}

	return &model.ScheduleAvailability{
		ScheduleID:  scheduleID,
		Capacity:    capacity,
		BookedCount: booked,
		Remaining:   capacity - booked,
		IsActive:    result["is_active"] == "1",
	}, nil
}

func (c *RedisScheduleAvailabilityCache) Invalidate(ctx context.Context, scheduleID uuid.UUID) error {
	return c.client.Del(ctx, c.key(scheduleID)).Err()
}
