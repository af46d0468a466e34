package handler

import (
	"context"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

type BookingServiceMock struct {
	mock.Mock
}

func (m *BookingServiceMock) booking(args mock.Arguments) (*model.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) CreateBooking(ctx context.Context, req model.CreateBookingRequest, actor model.Actor) (*model.Booking, error) {
	return m.booking(m.Called(ctx, req, actor))
}

func (m *BookingServiceMock) CancelBooking(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id, actor))
}

func (m *BookingServiceMock) UpdateAttendees(ctx context.Context, id uuid.UUID, req model.UpdateAttendeesRequest, actor model.Actor) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id, req, actor))
}

func (m *BookingServiceMock) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus, actor model.Actor) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id, status, actor))
}

func (m *BookingServiceMock) Reschedule(ctx context.Context, id uuid.UUID, scheduleID uuid.UUID, actor model.Actor) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id, scheduleID, actor))
}

func (m *BookingServiceMock) UploadPaymentProof(ctx context.Context, id uuid.UUID, upload service.FileUpload, actor model.Actor) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id, upload, actor))
}

func (m *BookingServiceMock) GetBooking(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id, actor))
}

func (m *BookingServiceMock) ListBookings(ctx context.Context, page model.PageQuery, actor model.Actor) ([]*model.Booking, int, error) {
	args := m.Called(ctx, page, actor)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*model.Booking), args.Int(1), args.Error(2)
}

func (m *BookingServiceMock) ListAttended(ctx context.Context, actor model.Actor) ([]*model.Booking, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Booking), args.Error(1)
}

type ScheduleServiceMock struct {
	mock.Mock
}

func (m *ScheduleServiceMock) schedule(args mock.Arguments) (*model.Schedule, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Schedule), args.Error(1)
}

func (m *ScheduleServiceMock) CreateSchedule(ctx context.Context, req model.CreateScheduleRequest, actor model.Actor) (*model.Schedule, error) {
	return m.schedule(m.Called(ctx, req, actor))
}

func (m *ScheduleServiceMock) UpdateSchedule(ctx context.Context, id uuid.UUID, params model.UpdateScheduleParams, actor model.Actor) (*model.Schedule, error) {
	return m.schedule(m.Called(ctx, id, params, actor))
}

func (m *ScheduleServiceMock) DeleteSchedule(ctx context.Context, id uuid.UUID, actor model.Actor) error {
	return m.Called(ctx, id, actor).Error(0)
}

func (m *ScheduleServiceMock) GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	return m.schedule(m.Called(ctx, id))
}

func (m *ScheduleServiceMock) ListUpcoming(ctx context.Context, serviceID uuid.UUID) ([]*model.Schedule, error) {
	args := m.Called(ctx, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Schedule), args.Error(1)
}

func (m *ScheduleServiceMock) GetAvailability(ctx context.Context, id uuid.UUID) (*model.ScheduleAvailability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduleAvailability), args.Error(1)
}

func (m *ScheduleServiceMock) Manifest(ctx context.Context, id uuid.UUID, actor model.Actor) ([]byte, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type CatalogServiceMock struct {
	mock.Mock
}

func (m *CatalogServiceMock) service(args mock.Arguments) (*model.Service, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Service), args.Error(1)
}

func (m *CatalogServiceMock) CreateService(ctx context.Context, req model.CreateServiceRequest, actor model.Actor) (*model.Service, error) {
	return m.service(m.Called(ctx, req, actor))
}

func (m *CatalogServiceMock) ListServices(ctx context.Context, page model.PageQuery) ([]*model.Service, int, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*model.Service), args.Int(1), args.Error(2)
}

func (m *CatalogServiceMock) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return m.service(m.Called(ctx, id))
}

func (m *CatalogServiceMock) UpdateService(ctx context.Context, id uuid.UUID, params model.UpdateServiceParams, actor model.Actor) (*model.Service, error) {
	return m.service(m.Called(ctx, id, params, actor))
}

func (m *CatalogServiceMock) DeleteService(ctx context.Context, id uuid.UUID, actor model.Actor) error {
	return m.Called(ctx, id, actor).Error(0)
}

type FileServiceMock struct {
	mock.Mock
}

func (m *FileServiceMock) Create(ctx context.Context, tx pgx.Tx, upload service.FileUpload, ownerID uuid.UUID, isPublic bool, category model.FileCategory) (*model.File, error) {
	args := m.Called(ctx, tx, upload, ownerID, isPublic, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *FileServiceMock) GetFile(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.File, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}
