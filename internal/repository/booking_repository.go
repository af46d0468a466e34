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

type BookingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int, error)
	// 使用者以參加者身分（非預約人）出現的預約，依行程日期排序
	ListAttendedByUser(ctx context.Context, userID uuid.UUID) ([]*model.Booking, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) (*model.Booking, error)
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Booking, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.BookingStatus) error
	UpdateSchedule(ctx context.Context, tx pgx.Tx, id uuid.UUID, scheduleID uuid.UUID) error
	AddBalanceDue(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error
	SetPaymentProof(ctx context.Context, tx pgx.Tx, id uuid.UUID, fileID uuid.UUID) error
}

type BookingRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &BookingRepositoryImpl{
		pool: pool,
	}
}

const bookingColumns = `b.id, b.user_id, b.service_id, b.schedule_id, b.status,
	b.total_price, b.balance_due, b.payment_proof_id, b.created_at, b.updated_at`

// 讀取用：附帶參加人數、付款證明路徑與行程日期
const bookingReadQuery = `
	SELECT ` + bookingColumns + `,
		(SELECT COUNT(*) FROM attendees a WHERE a.booking_id = b.id),
		f.path, sc.date
	FROM bookings b
	JOIN schedules sc ON sc.id = b.schedule_id
	LEFT JOIN files f ON f.id = b.payment_proof_id
`

func bookingFields(b *model.Booking) []any {
	return []any{
		&b.ID,
		&b.UserID,
		&b.ServiceID,
		&b.ScheduleID,
		&b.Status,
		&b.TotalPrice,
		&b.BalanceDue,
		&b.PaymentProofID,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func scanBookingRead(row pgx.Row) (*model.Booking, error) {
	var (
		booking      model.Booking
		scheduleDate time.Time
	)
	fields := append(bookingFields(&booking), &booking.AttendeeCount, &booking.PaymentProofPath, &scheduleDate)
	if err := row.Scan(fields...); err != nil {
		return nil, err
	}
	booking.ScheduleDate = &scheduleDate
	return &booking, nil
}

func (r *BookingRepositoryImpl) collect(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	bookings := make([]*model.Booking, 0)
	for rows.Next() {
		booking, err := scanBookingRead(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := scanBookingRead(r.pool.QueryRow(ctx, bookingReadQuery+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

func (r *BookingRepositoryImpl) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings b WHERE ($1::uuid IS NULL OR b.user_id = $1)`, filter.UserID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	rows, err := r.pool.Query(ctx, bookingReadQuery+`
		WHERE ($1::uuid IS NULL OR b.user_id = $1)
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3
	`, filter.UserID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}

	bookings, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *BookingRepositoryImpl) ListAttendedByUser(ctx context.Context, userID uuid.UUID) ([]*model.Booking, error) {
	rows, err := r.pool.Query(ctx, bookingReadQuery+`
		WHERE b.user_id <> $1
		  AND EXISTS (SELECT 1 FROM attendees a WHERE a.booking_id = b.id AND a.user_id = $1)
		ORDER BY sc.date ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *BookingRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) (*model.Booking, error) {
	query := `
		INSERT INTO bookings (
			user_id, service_id, schedule_id, status, total_price, balance_due
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		booking.UserID, booking.ServiceID, booking.ScheduleID,
		booking.Status, booking.TotalPrice, booking.BalanceDue,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		// token 有效但帳號已不存在
		if violatesForeignKey(err, "bookings_user_id_fkey") {
			return nil, apperrors.WithDetail(apperrors.ErrUnauthorized, "account %s does not exist", booking.UserID)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return booking, nil
}

func (r *BookingRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1 FOR UPDATE`

	var booking model.Booking
	if err := tx.QueryRow(ctx, query, id).Scan(bookingFields(&booking)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepositoryImpl) exec(ctx context.Context, tx pgx.Tx, query string, args ...any) error {
	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepositoryImpl) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.BookingStatus) error {
	err := r.exec(ctx, tx, `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil && !errors.Is(err, apperrors.ErrBookingNotFound) {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return err
}

func (r *BookingRepositoryImpl) UpdateSchedule(ctx context.Context, tx pgx.Tx, id uuid.UUID, scheduleID uuid.UUID) error {
	return r.exec(ctx, tx, `UPDATE bookings SET schedule_id = $1, updated_at = $2 WHERE id = $3`,
		scheduleID, time.Now().UTC(), id)
}

func (r *BookingRepositoryImpl) AddBalanceDue(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	return r.exec(ctx, tx, `UPDATE bookings SET balance_due = balance_due + $1, updated_at = $2 WHERE id = $3`,
		amount, time.Now().UTC(), id)
}

func (r *BookingRepositoryImpl) SetPaymentProof(ctx context.Context, tx pgx.Tx, id uuid.UUID, fileID uuid.UUID) error {
	return r.exec(ctx, tx, `UPDATE bookings SET payment_proof_id = $1, updated_at = $2 WHERE id = $3`,
		fileID, time.Now().UTC(), id)
}
