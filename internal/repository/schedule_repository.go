package repository

import (
	"context"
	"errors"
	"fmt"
	"go-gin-trip-booking/internal/model"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) (*model.Schedule, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
	// 某服務自 from 起（含）的啟用中日期，依日期排序
	ListUpcomingByService(ctx context.Context, serviceID uuid.UUID, from time.Time) ([]*model.Schedule, error)

	// Transaction methods
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Schedule, error)
	Update(ctx context.Context, tx pgx.Tx, schedule *model.Schedule) (*model.Schedule, error)
	AdjustBookedCount(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) (*model.Schedule, error)
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type ScheduleRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) ScheduleRepository {
	return &ScheduleRepositoryImpl{
		pool: pool,
	}
}

const scheduleColumns = `id, service_id, date, capacity, booked_count, is_active, created_at, updated_at, deleted_at`

func scanSchedule(row pgx.Row) (*model.Schedule, error) {
	var schedule model.Schedule
	err := row.Scan(
		&schedule.ID,
		&schedule.ServiceID,
		&schedule.Date,
		&schedule.Capacity,
		&schedule.BookedCount,
		&schedule.IsActive,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
		&schedule.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *ScheduleRepositoryImpl) Create(ctx context.Context, schedule *model.Schedule) (*model.Schedule, error) {
	query := `
		INSERT INTO schedules (service_id, date, capacity, booked_count, is_active)
		VALUES ($1, $2, $3, 0, $4)
		RETURNING ` + scheduleColumns

	created, err := scanSchedule(r.pool.QueryRow(ctx, query,
		schedule.ServiceID, schedule.Date, schedule.Capacity, schedule.IsActive,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperrors.ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	return created, nil
}

func (r *ScheduleRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1 AND deleted_at IS NULL`

	schedule, err := scanSchedule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrScheduleNotFound
		}
		return nil, err
	}
	return schedule, nil
}

func (r *ScheduleRepositoryImpl) ListUpcomingByService(ctx context.Context, serviceID uuid.UUID, from time.Time) ([]*model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE service_id = $1 AND is_active = TRUE AND deleted_at IS NULL AND date >= $2
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, serviceID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]*model.Schedule, 0)
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return schedules, nil
}

// FindByIDWithLock 以 SELECT ... FOR UPDATE 鎖住該日期的名額列，直到交易結束
// 軟刪除的日期也會回傳，已取消預約的狀態變更仍需鎖住它
func (r *ScheduleRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1 FOR UPDATE`

	schedule, err := scanSchedule(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrScheduleNotFound
		}
		return nil, err
	}
	return schedule, nil
}

func (r *ScheduleRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, schedule *model.Schedule) (*model.Schedule, error) {
	query := `
		UPDATE schedules
		SET date = $1, capacity = $2, is_active = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + scheduleColumns

	updated, err := scanSchedule(tx.QueryRow(ctx, query,
		schedule.Date, schedule.Capacity, schedule.IsActive, time.Now().UTC(), schedule.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrScheduleNotFound
		}
		if isCheckViolation(err) {
			return nil, apperrors.ErrCapacityViolation
		}
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}
	return updated, nil
}

// AdjustBookedCount 將 booked_count 加上 delta（負數為釋放）
// 呼叫端需持有列鎖；這裡的範圍條件只是最後防線
func (r *ScheduleRepositoryImpl) AdjustBookedCount(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) (*model.Schedule, error) {
	query := `
		UPDATE schedules
		SET booked_count = booked_count + $1, updated_at = $2
		WHERE id = $3
		  AND booked_count + $1 >= 0
		  AND booked_count + $1 <= capacity
		RETURNING ` + scheduleColumns

	schedule, err := scanSchedule(tx.QueryRow(ctx, query, delta, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.WithDetail(apperrors.ErrCapacityExceeded, "booked count out of range")
		}
		return nil, fmt.Errorf("failed to adjust booked count: %w", err)
	}
	return schedule, nil
}

// Delete 沒有任何預約參照時直接刪除；只剩已取消的預約參照時改為軟刪除並停用
// 呼叫端需持有列鎖並確認 booked_count 為 0
func (r *ScheduleRepositoryImpl) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	result, err := tx.Exec(ctx, `
		DELETE FROM schedules s
		WHERE s.id = $1
		  AND s.deleted_at IS NULL
		  AND NOT EXISTS (SELECT 1 FROM bookings b WHERE b.schedule_id = s.id)
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	now := time.Now().UTC()
	result, err = tx.Exec(ctx, `
		UPDATE schedules
		SET is_active = FALSE, deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, now, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrScheduleNotFound
	}
	return nil
}
