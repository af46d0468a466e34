package repository

import (
	"context"
	"fmt"
	"go-gin-trip-booking/internal/model"
	apperrors "go-gin-trip-booking/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttendeeRepository interface {
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*model.Attendee, error)
	// 日期名單：該日期所有未取消預約的參加者
	ListManifest(ctx context.Context, scheduleID uuid.UUID) ([]*model.ManifestEntry, error)

	// Transaction methods
	CreateBatch(ctx context.Context, tx pgx.Tx, attendees []*model.Attendee) error
	FindByBookingIDInTx(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) ([]*model.Attendee, error)
	Update(ctx context.Context, tx pgx.Tx, attendee *model.Attendee) error
	DeleteByIDs(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, ids []uuid.UUID) (int, error)
}

type AttendeeRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewAttendeeRepository(pool *pgxpool.Pool) AttendeeRepository {
	return &AttendeeRepositoryImpl{
		pool: pool,
	}
}

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *AttendeeRepositoryImpl) findByBookingID(ctx context.Context, q rowsQuerier, bookingID uuid.UUID) ([]*model.Attendee, error) {
	query := `
		SELECT id, booking_id, name, email, phone, user_id
		FROM attendees
		WHERE booking_id = $1
		ORDER BY name ASC, id ASC
	`

	rows, err := q.Query(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attendees := make([]*model.Attendee, 0)
	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.ID, &a.BookingID, &a.Name, &a.Email, &a.Phone, &a.UserID); err != nil {
			return nil, err
		}
		attendees = append(attendees, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attendees, nil
}

func (r *AttendeeRepositoryImpl) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*model.Attendee, error) {
	return r.findByBookingID(ctx, r.pool, bookingID)
}

func (r *AttendeeRepositoryImpl) FindByBookingIDInTx(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) ([]*model.Attendee, error) {
	return r.findByBookingID(ctx, tx, bookingID)
}

func (r *AttendeeRepositoryImpl) ListManifest(ctx context.Context, scheduleID uuid.UUID) ([]*model.ManifestEntry, error) {
	query := `
		SELECT b.id, b.status, a.name, a.email, a.phone
		FROM attendees a
		JOIN bookings b ON b.id = a.booking_id
		WHERE b.schedule_id = $1 AND b.status <> $2
		ORDER BY b.created_at ASC, a.name ASC
	`

	rows, err := r.pool.Query(ctx, query, scheduleID, model.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*model.ManifestEntry, 0)
	for rows.Next() {
		var e model.ManifestEntry
		if err := rows.Scan(&e.BookingID, &e.BookingStatus, &e.Name, &e.Email, &e.Phone); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateBatch 以 COPY 寫入；id 由呼叫端產生
func (r *AttendeeRepositoryImpl) CreateBatch(ctx context.Context, tx pgx.Tx, attendees []*model.Attendee) error {
	if len(attendees) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"attendees"},
		[]string{"id", "booking_id", "name", "email", "phone", "user_id"},
		pgx.CopyFromSlice(len(attendees), func(i int) ([]any, error) {
			a := attendees[i]
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			return []any{a.ID, a.BookingID, a.Name, a.Email, a.Phone, a.UserID}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create attendees: %w", err)
	}
	return nil
}

func (r *AttendeeRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, attendee *model.Attendee) error {
	query := `
		UPDATE attendees
		SET name = $1, email = $2, phone = $3
		WHERE id = $4 AND booking_id = $5
	`

	result, err := tx.Exec(ctx, query,
		attendee.Name, attendee.Email, attendee.Phone, attendee.ID, attendee.BookingID)
	if err != nil {
		if isCheckViolation(err) {
			return apperrors.WithDetail(apperrors.ErrInvalidInput, "attendee needs an email or a phone")
		}
		return fmt.Errorf("failed to update attendee: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrAttendeeNotFound
	}
	return nil
}

func (r *AttendeeRepositoryImpl) DeleteByIDs(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := tx.Exec(ctx,
		`DELETE FROM attendees WHERE booking_id = $1 AND id = ANY($2)`, bookingID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete attendees: %w", err)
	}
	return int(result.RowsAffected()), nil
}
