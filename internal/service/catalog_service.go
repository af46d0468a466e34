package service

import (
	"context"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/repository"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CatalogService interface {
	CreateService(ctx context.Context, req model.CreateServiceRequest, actor model.Actor) (*model.Service, error)
	ListServices(ctx context.Context, page model.PageQuery) ([]*model.Service, int, error)
	GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
	UpdateService(ctx context.Context, id uuid.UUID, params model.UpdateServiceParams, actor model.Actor) (*model.Service, error)
	// 軟刪除，既有預約不受影響
	DeleteService(ctx context.Context, id uuid.UUID, actor model.Actor) error
}

type CatalogServiceImpl struct {
	tx         repository.TxManager
	repository repository.ServiceRepository
}

func NewCatalogService(txManager repository.TxManager, serviceRepository repository.ServiceRepository) CatalogService {
	return &CatalogServiceImpl{
		tx:         txManager,
		repository: serviceRepository,
	}
}

func (s *CatalogServiceImpl) CreateService(ctx context.Context, req model.CreateServiceRequest, actor model.Actor) (*model.Service, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if !req.ServiceType.IsValid() {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "unknown service type %q", req.ServiceType)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "title is required")
	}
	if req.BasePrice < 0 {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "base price cannot be negative")
	}
	if err := validateTripDetails(req.TripDetails); err != nil {
		return nil, err
	}

	isBookable := true
	if req.IsBookable != nil {
		isBookable = *req.IsBookable
	}
	service := &model.Service{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		BasePrice:   req.BasePrice,
		Location:    req.Location,
		ServiceType: req.ServiceType,
		IsBookable:  isBookable,
		TripDetails: req.TripDetails,
	}

	var created *model.Service
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		created, err = s.repository.Create(ctx, tx, service)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *CatalogServiceImpl) ListServices(ctx context.Context, page model.PageQuery) ([]*model.Service, int, error) {
	return s.repository.List(ctx, page.Limit, page.Offset())
}

func (s *CatalogServiceImpl) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return s.repository.FindByID(ctx, id)
}

func (s *CatalogServiceImpl) UpdateService(ctx context.Context, id uuid.UUID, params model.UpdateServiceParams, actor model.Actor) (*model.Service, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if params.IsEmpty() {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "no fields to update")
	}
	if params.BasePrice != nil && *params.BasePrice < 0 {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "base price cannot be negative")
	}
	if err := validateTripDetails(params.TripDetails); err != nil {
		return nil, err
	}

	var updated *model.Service
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		updated, err = s.repository.Update(ctx, tx, id, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *CatalogServiceImpl) DeleteService(ctx context.Context, id uuid.UUID, actor model.Actor) error {
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}
	return s.repository.SoftDelete(ctx, id)
}

func validateTripDetails(d *model.TripDetails) error {
	if d == nil {
		return nil
	}
	if d.DurationDays < 1 {
		return apperrors.WithDetail(apperrors.ErrInvalidInput, "duration_days must be at least 1")
	}
	if d.MinAttendees < 1 {
		return apperrors.WithDetail(apperrors.ErrInvalidInput, "min_attendees must be at least 1")
	}
	for _, day := range d.Itinerary {
		if day.Day < 1 || day.Day > d.DurationDays {
			return apperrors.WithDetail(apperrors.ErrInvalidInput, "itinerary day %d is outside the trip", day.Day)
		}
	}
	return nil
}
