// Package testutil 整合測試環境（Postgres 5433、Redis 6380，見 config.LoadTestConfig）
package testutil

import (
	"context"
	"fmt"
	"go-gin-trip-booking/config"
	"go-gin-trip-booking/internal/database"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/pkg/logger"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func Setup() (*pgxpool.Pool, *redis.Client, func(), error) {
	ctx := context.Background()
	cfg := config.LoadTestConfig()

	testDB, err := database.InitDatabase(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize test database: %w", err)
	}
	if err := database.Migrate(ctx, testDB); err != nil {
		testDB.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate test database: %w", err)
	}
	logger.L.Info("Test database connected successfully")

	testRdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		testDB.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.L.Info("Test redis connected successfully")

	cleanup := func() {
		testDB.Close()
		testRdb.Close()
	}

	return testDB, testRdb, cleanup, nil
}

// SetupRedisOnly 僅初始化 Redis，用於只依賴 Redis 的測試（如 queue 整合測試）
func SetupRedisOnly() (*redis.Client, func(), error) {
	cfg := config.LoadTestConfig()
	rdb, err := database.InitRedis(context.Background(), &cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	return rdb, func() { rdb.Close() }, nil
}

func Truncate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		TRUNCATE attendees, bookings, files, schedules, trip_details, services, users
		RESTART IDENTITY CASCADE`)
	return err
}

// Seed 整合測試的基本資料：使用者、管理員、可預約的行程，以及 daysAhead 天後的日期
type Seed struct {
	User     *model.User
	Admin    *model.User
	Service  *model.Service
	Schedule *model.Schedule
}

func SeedTrip(ctx context.Context, pool *pgxpool.Pool, capacity int, daysAhead int, basePrice int64) (*Seed, error) {
	seed := &Seed{
		User:     &model.User{Name: "Traveller", Email: strPtr(uuid.NewString() + "@example.com"), Role: model.RoleUser},
		Admin:    &model.User{Name: "Admin", Email: strPtr(uuid.NewString() + "@example.com"), Role: model.RoleAdmin},
		Service:  &model.Service{Title: "Island hopping", Description: "Three islands", BasePrice: basePrice, ServiceType: model.ServiceTypeTrip, IsBookable: true},
		Schedule: &model.Schedule{Capacity: capacity, IsActive: true},
	}

	for _, u := range []*model.User{seed.User, seed.Admin} {
		err := pool.QueryRow(ctx,
			`INSERT INTO users (name, email, role) VALUES ($1, $2, $3) RETURNING id`,
			u.Name, u.Email, u.Role).Scan(&u.ID)
		if err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO services (title, description, base_price, service_type, is_bookable)
		VALUES ($1, $2, $3, $4, TRUE) RETURNING id`,
		seed.Service.Title, seed.Service.Description, seed.Service.BasePrice, seed.Service.ServiceType,
	).Scan(&seed.Service.ID)
	if err != nil {
		return nil, fmt.Errorf("seed service: %w", err)
	}

	seed.Schedule.ServiceID = seed.Service.ID
	seed.Schedule.Date = time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, daysAhead)
	err = pool.QueryRow(ctx, `
		INSERT INTO schedules (service_id, date, capacity) VALUES ($1, $2, $3) RETURNING id`,
		seed.Schedule.ServiceID, seed.Schedule.Date, seed.Schedule.Capacity,
	).Scan(&seed.Schedule.ID)
	if err != nil {
		return nil, fmt.Errorf("seed schedule: %w", err)
	}

	return seed, nil
}

func strPtr(s string) *string {
	return &s
}
