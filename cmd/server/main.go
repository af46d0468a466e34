package main

import (
	"context"
	"errors"
	"fmt"
	"go-gin-trip-booking/config"
	"go-gin-trip-booking/internal/cache"
	"go-gin-trip-booking/internal/database"
	"go-gin-trip-booking/internal/handler"
	"go-gin-trip-booking/internal/notify"
	"go-gin-trip-booking/internal/policy"
	"go-gin-trip-booking/internal/queue"
	"go-gin-trip-booking/internal/repository"
	"go-gin-trip-booking/internal/router"
	"go-gin-trip-booking/internal/service"
	"go-gin-trip-booking/internal/storage"
	"go-gin-trip-booking/internal/worker"
	"go-gin-trip-booking/pkg/auth"
	"go-gin-trip-booking/pkg/logger"
	"go-gin-trip-booking/pkg/telemetry"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const availabilityTTL = 10 * time.Minute

func main() {
	// .env 不存在時直接使用環境變數
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	logger.SetLevel(cfg.App.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.L.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		logger.L.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.L.Info("Server exited gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.OTel.Enabled,
		ServiceName:   cfg.OTel.ServiceName,
		Environment:   cfg.App.Environment,
		CollectorAddr: cfg.OTel.CollectorAddr,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.L.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	pool, err := database.InitDatabase(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	defer rdb.Close()

	events, closeQueue, err := newEventQueue(ctx, cfg, rdb)
	if err != nil {
		return fmt.Errorf("init event queue: %w", err)
	}
	defer closeQueue()

	blobs, err := storage.NewLocalBlobStore(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	txManager := repository.NewTxManager(pool)
	serviceRepository := repository.NewServiceRepository(pool)
	scheduleRepository := repository.NewScheduleRepository(pool)
	attendeeRepository := repository.NewAttendeeRepository(pool)
	availability := cache.NewScheduleAvailabilityCache(rdb, availabilityTTL)

	fileService := service.NewFileService(blobs, repository.NewFileRepository(pool), cfg.Storage.MaxFileSize)
	catalogService := service.NewCatalogService(txManager, serviceRepository)
	scheduleService := service.NewScheduleService(txManager, serviceRepository, scheduleRepository, attendeeRepository, availability)
	bookingService := service.NewBookingService(service.BookingServiceDeps{
		TxManager:    txManager,
		Services:     serviceRepository,
		Schedules:    scheduleRepository,
		Bookings:     repository.NewBookingRepository(pool),
		Attendees:    attendeeRepository,
		Users:        repository.NewUserRepository(pool),
		Files:        fileService,
		Availability: availability,
		Events:       events,
		Window:       policy.NewModificationWindow(cfg.Booking.ModificationWindowDays),

		SideEffectTimeout: cfg.Booking.SideEffectTimeout,
	})

	engine := router.New(router.Options{
		AllowOrigins: cfg.Server.AllowOrigins,
		Tokens:       auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer),
	}, router.Handlers{
		Services:  handler.NewServiceHandler(catalogService),
		Schedules: handler.NewScheduleHandler(scheduleService),
		Bookings:  handler.NewBookingHandler(bookingService, cfg.Storage.MaxFileSize),
		Files:     handler.NewFileHandler(fileService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	notifier := notify.NewLogNotifier(logger.WithComponent("notify"))
	eventWorker := worker.NewBookingEventWorker(notifier, events)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return eventWorker.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.L.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newEventQueue 依 QUEUE_DRIVER 建立事件佇列
func newEventQueue(ctx context.Context, cfg *config.Config, rdb *redis.Client) (queue.BookingEventQueue, func(), error) {
	noop := func() {}

	switch cfg.Queue.Driver {
	case "memory":
		return queue.NewMemoryBookingEventQueue(cfg.Queue.BufferSize), noop, nil
	case "redis":
		hostname, _ := os.Hostname()
		q, err := queue.NewRedisStreamBookingQueue(ctx, rdb, hostname, queue.RedisStreamConfig{
			ClaimMinIdleTime:   cfg.Queue.ClaimMinIdleTime,
			MaxRetryCount:      cfg.Queue.MaxRetryCount,
			ReadGroupBlockTime: cfg.Queue.ReadGroupBlockTime,
		})
		if err != nil {
			return nil, nil, err
		}
		return q, noop, nil
	case "amqp":
		q, err := queue.NewAMQPBookingQueue(cfg.Queue.AMQPURL, cfg.Queue.AMQPQueueName)
		if err != nil {
			return nil, nil, err
		}
		return q, func() {
			if err := q.Close(); err != nil {
				logger.L.Warn("Failed to close amqp connection", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}
}
