package repository

import (
	"context"
	"errors"
	"fmt"
	"go-gin-trip-booking/internal/model"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rowQuerier *pgxpool.Pool 與 pgx.Tx 皆可使用
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ServiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Service, error)
	List(ctx context.Context, limit, offset int) ([]*model.Service, int, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, service *model.Service) (*model.Service, error)
	// 包含已軟刪除的服務
	FindByIDInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Service, error)
	Update(ctx context.Context, tx pgx.Tx, id uuid.UUID, params model.UpdateServiceParams) (*model.Service, error)
}

type ServiceRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewServiceRepository(pool *pgxpool.Pool) ServiceRepository {
	return &ServiceRepositoryImpl{
		pool: pool,
	}
}

const serviceColumns = `
	s.id, s.title, s.description, s.base_price, s.location, s.service_type,
	s.is_bookable, s.created_at, s.updated_at, s.deleted_at,
	td.duration_days, td.min_attendees, td.is_cancellable,
	td.itinerary, td.inclusions, td.exclusions`

func scanService(row pgx.Row) (*model.Service, error) {
	var (
		service       model.Service
		durationDays  *int
		minAttendees  *int
		isCancellable *bool
		itinerary     []model.ItineraryDay
		inclusions    []string
		exclusions    []string
	)
	err := row.Scan(
		&service.ID,
		&service.Title,
		&service.Description,
		&service.BasePrice,
		&service.Location,
		&service.ServiceType,
		&service.IsBookable,
		&service.CreatedAt,
		&service.UpdatedAt,
		&service.DeletedAt,
		&durationDays,
		&minAttendees,
		&isCancellable,
		&itinerary,
		&inclusions,
		&exclusions,
	)
	if err != nil {
		return nil, err
	}

	if durationDays != nil {
		service.TripDetails = &model.TripDetails{
			DurationDays:  *durationDays,
			MinAttendees:  *minAttendees,
			IsCancellable: *isCancellable,
			Itinerary:     itinerary,
			Inclusions:    inclusions,
			Exclusions:    exclusions,
		}
	}
	return &service, nil
}

func (r *ServiceRepositoryImpl) findByID(ctx context.Context, q rowQuerier, id uuid.UUID, includeDeleted bool) (*model.Service, error) {
	query := `
		SELECT ` + serviceColumns + `
		FROM services s
		LEFT JOIN trip_details td ON td.service_id = s.id
		WHERE s.id = $1 AND ($2 OR s.deleted_at IS NULL)
	`

	service, err := scanService(q.QueryRow(ctx, query, id, includeDeleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	return service, nil
}

func (r *ServiceRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return r.findByID(ctx, r.pool, id, false)
}

// FindByIDInTx 也會回傳已軟刪除的服務，由呼叫端檢查 IsDeleted
func (r *ServiceRepositoryImpl) FindByIDInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Service, error) {
	return r.findByID(ctx, tx, id, true)
}

func (r *ServiceRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*model.Service, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM services WHERE deleted_at IS NULL`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count services: %w", err)
	}

	query := `
		SELECT ` + serviceColumns + `
		FROM services s
		LEFT JOIN trip_details td ON td.service_id = s.id
		WHERE s.deleted_at IS NULL
		ORDER BY s.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	services := make([]*model.Service, 0)
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		services = append(services, service)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return services, total, nil
}

func (r *ServiceRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, service *model.Service) (*model.Service, error) {
	query := `
		INSERT INTO services (
			title, description, base_price, location, service_type, is_bookable
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		service.Title, service.Description, service.BasePrice,
		service.Location, service.ServiceType, service.IsBookable,
	).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	if service.TripDetails != nil {
		if err := r.upsertTripDetails(ctx, tx, service.ID, service.TripDetails); err != nil {
			return nil, err
		}
	}

	return service, nil
}

func (r *ServiceRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, id uuid.UUID, params model.UpdateServiceParams) (*model.Service, error) {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}
	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.BasePrice != nil {
		add("base_price", *params.BasePrice)
	}
	if params.Location != nil {
		add("location", *params.Location)
	}
	if params.IsBookable != nil {
		add("is_bookable", *params.IsBookable)
	}

	// add updated_at
	add("updated_at", time.Now().UTC())

	// add id
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE services
		SET %s
		WHERE id = $%d AND deleted_at IS NULL
	`, strings.Join(sets, ", "), argPos)

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, apperrors.ErrServiceNotFound
	}

	if params.TripDetails != nil {
		if err := r.upsertTripDetails(ctx, tx, id, params.TripDetails); err != nil {
			return nil, err
		}
	}

	return r.findByID(ctx, tx, id, false)
}

func (r *ServiceRepositoryImpl) upsertTripDetails(ctx context.Context, tx pgx.Tx, serviceID uuid.UUID, d *model.TripDetails) error {
	query := `
		INSERT INTO trip_details (
			service_id, duration_days, min_attendees, is_cancellable,
			itinerary, inclusions, exclusions
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (service_id) DO UPDATE SET
			duration_days = EXCLUDED.duration_days,
			min_attendees = EXCLUDED.min_attendees,
			is_cancellable = EXCLUDED.is_cancellable,
			itinerary = EXCLUDED.itinerary,
			inclusions = EXCLUDED.inclusions,
			exclusions = EXCLUDED.exclusions
	`

	itinerary := d.Itinerary
	if itinerary == nil {
		itinerary = []model.ItineraryDay{}
	}
	_, err := tx.Exec(ctx, query,
		serviceID, d.DurationDays, d.MinAttendees, d.IsCancellable,
		itinerary, nonNilStrings(d.Inclusions), nonNilStrings(d.Exclusions),
	)
	if err != nil {
		if isCheckViolation(err) {
			return apperrors.WithDetail(apperrors.ErrInvalidInput, "invalid trip details")
		}
		return fmt.Errorf("failed to save trip details: %w", err)
	}
	return nil
}

func (r *ServiceRepositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE services
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	// check if service exists and not already deleted
	if result.RowsAffected() == 0 {
		return apperrors.ErrServiceNotFound
	}

	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
