package service

import (
	"context"
	"errors"
	"go-gin-trip-booking/internal/cache"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/repository"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"go-gin-trip-booking/pkg/logger"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ScheduleService interface {
	CreateSchedule(ctx context.Context, req model.CreateScheduleRequest, actor model.Actor) (*model.Schedule, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, params model.UpdateScheduleParams, actor model.Actor) (*model.Schedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID, actor model.Actor) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
	// 今天（含）之後的啟用日期，依日期排序
	ListUpcoming(ctx context.Context, serviceID uuid.UUID) ([]*model.Schedule, error)
	GetAvailability(ctx context.Context, id uuid.UUID) (*model.ScheduleAvailability, error)
	Manifest(ctx context.Context, id uuid.UUID, actor model.Actor) ([]byte, error)
}

type ScheduleServiceImpl struct {
	tx           repository.TxManager
	services     repository.ServiceRepository
	schedules    repository.ScheduleRepository
	attendees    repository.AttendeeRepository
	availability cache.ScheduleAvailabilityCache
	now          func() time.Time
}

func NewScheduleService(
	txManager repository.TxManager,
	serviceRepository repository.ServiceRepository,
	scheduleRepository repository.ScheduleRepository,
	attendeeRepository repository.AttendeeRepository,
	availability cache.ScheduleAvailabilityCache,
) ScheduleService {
	return &ScheduleServiceImpl{
		tx:           txManager,
		services:     serviceRepository,
		schedules:    scheduleRepository,
		attendees:    attendeeRepository,
		availability: availability,
		now:          time.Now,
	}
}

func (s *ScheduleServiceImpl) CreateSchedule(ctx context.Context, req model.CreateScheduleRequest, actor model.Actor) (*model.Schedule, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if req.Capacity < 1 {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "capacity must be at least 1")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "date must be YYYY-MM-DD")
	}

	// 服務必須存在且未刪除
	if _, err := s.services.FindByID(ctx, req.ServiceID); err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	schedule, err := s.schedules.Create(ctx, &model.Schedule{
		ServiceID: req.ServiceID,
		Date:      date,
		Capacity:  req.Capacity,
		IsActive:  isActive,
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, schedule)
	return schedule, nil
}

func (s *ScheduleServiceImpl) UpdateSchedule(ctx context.Context, id uuid.UUID, params model.UpdateScheduleParams, actor model.Actor) (*model.Schedule, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if params.Date == nil && params.Capacity == nil && params.IsActive == nil {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "no fields to update")
	}

	var updated *model.Schedule
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		schedule, err := s.schedules.FindByIDWithLock(ctx, tx, id)
		if err != nil {
			return err
		}
		if schedule.IsDeleted() {
			return apperrors.ErrScheduleNotFound
		}

		if params.Capacity != nil {
			if *params.Capacity < 1 {
				return apperrors.WithDetail(apperrors.ErrInvalidInput, "capacity must be at least 1")
			}
			// 不可低於已預約人數
			if *params.Capacity < schedule.BookedCount {
				return apperrors.WithFields(apperrors.ErrCapacityViolation,
					map[string]interface{}{
						"capacity":     *params.Capacity,
						"booked_count": schedule.BookedCount,
					},
					"capacity %d is below the %d seat(s) already booked", *params.Capacity, schedule.BookedCount)
			}
			schedule.Capacity = *params.Capacity
		}
		if params.Date != nil {
			date, err := model.ParseDate(*params.Date)
			if err != nil {
				return apperrors.WithDetail(apperrors.ErrInvalidInput, "date must be YYYY-MM-DD")
			}
			schedule.Date = date
		}
		if params.IsActive != nil {
			schedule.IsActive = *params.IsActive
		}

		updated, err = s.schedules.Update(ctx, tx, schedule)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, updated)
	return updated, nil
}

func (s *ScheduleServiceImpl) DeleteSchedule(ctx context.Context, id uuid.UUID, actor model.Actor) error {
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		schedule, err := s.schedules.FindByIDWithLock(ctx, tx, id)
		if err != nil {
			return err
		}
		if schedule.IsDeleted() {
			return apperrors.ErrScheduleNotFound
		}
		if schedule.BookedCount > 0 {
			return apperrors.WithFields(apperrors.ErrResourceInUse,
				map[string]interface{}{"booked_count": schedule.BookedCount},
				"schedule still has %d booked seat(s)", schedule.BookedCount)
		}
		return s.schedules.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	if s.availability != nil {
		err := withDetachedTimeout(ctx, DefaultSideEffectTimeout, func(ctx context.Context) error {
			return s.availability.Invalidate(ctx, id)
		})
		if err != nil {
			logger.WithComponent("service").Warn("failed to invalidate availability cache",
				zap.String("schedule_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *ScheduleServiceImpl) GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	return s.schedules.FindByID(ctx, id)
}

func (s *ScheduleServiceImpl) ListUpcoming(ctx context.Context, serviceID uuid.UUID) ([]*model.Schedule, error) {
	if _, err := s.services.FindByID(ctx, serviceID); err != nil {
		return nil, err
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	return s.schedules.ListUpcomingByService(ctx, serviceID, today)
}

// GetAvailability 先讀快取，未命中再查資料庫並回填
func (s *ScheduleServiceImpl) GetAvailability(ctx context.Context, id uuid.UUID) (*model.ScheduleAvailability, error) {
	if s.availability != nil {
		availability, err := s.availability.Get(ctx, id)
		if err == nil {
			return availability, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithComponent("cache").Warn("availability cache read failed",
				zap.String("schedule_id", id.String()), zap.Error(err))
		}
	}

	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx, schedule)

	availability := schedule.Availability()
	return &availability, nil
}

func (s *ScheduleServiceImpl) Manifest(ctx context.Context, id uuid.UUID, actor model.Actor) ([]byte, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	svc, err := s.services.FindByID(ctx, schedule.ServiceID)
	if err != nil {
		return nil, err
	}
	entries, err := s.attendees.ListManifest(ctx, id)
	if err != nil {
		return nil, err
	}

	return renderManifestPDF(svc, schedule, entries, s.now())
}

func (s *ScheduleServiceImpl) refreshCache(ctx context.Context, schedule *model.Schedule) {
	if s.availability == nil {
		return
	}
	err := withDetachedTimeout(ctx, DefaultSideEffectTimeout, func(ctx context.Context) error {
		return s.availability.Set(ctx, schedule)
	})
	if err != nil {
		logger.WithComponent("cache").Warn("failed to refresh availability cache",
			zap.String("schedule_id", schedule.ID.String()), zap.Error(err))
	}
}
