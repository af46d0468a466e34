package database

import (
	"context"
	"fmt"
	"go-gin-trip-booking/config"
	"go-gin-trip-booking/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// InitDatabase 依設定建立 pgx 連線池並確認可連線
func InitDatabase(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	logger.WithComponent("database").Info("Postgres connected",
		zap.String("db", cfg.DBName),
		zap.Int32("max_conns", cfg.MaxConns))
	return pool, nil
}
