package service

import (
	"bytes"
	"context"
	"errors"
	"go-gin-trip-booking/internal/cache"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/policy"
	"go-gin-trip-booking/internal/queue"
	"go-gin-trip-booking/internal/repository"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"go-gin-trip-booking/pkg/logger"
	"go-gin-trip-booking/pkg/telemetry"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req model.CreateBookingRequest, actor model.Actor) (*model.Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Booking, error)
	// 刪除 → 修改 → 新增，同一交易內完成
	UpdateAttendees(ctx context.Context, id uuid.UUID, req model.UpdateAttendeesRequest, actor model.Actor) (*model.Booking, error)
	// 僅管理員；轉為 CANCELLED 時釋放名額
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus, actor model.Actor) (*model.Booking, error)
	Reschedule(ctx context.Context, id uuid.UUID, scheduleID uuid.UUID, actor model.Actor) (*model.Booking, error)
	UploadPaymentProof(ctx context.Context, id uuid.UUID, upload FileUpload, actor model.Actor) (*model.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Booking, error)
	ListBookings(ctx context.Context, page model.PageQuery, actor model.Actor) ([]*model.Booking, int, error)
	// 使用者以參加者身分（非預約人）出現的預約
	ListAttended(ctx context.Context, actor model.Actor) ([]*model.Booking, error)
}

// DefaultSideEffectTimeout 提交後副作用（快取、事件）的預設等待上限
const DefaultSideEffectTimeout = 3 * time.Second

// BookingServiceDeps BookingServiceImpl 的依賴；Availability 與 Events 可為 nil
// SideEffectTimeout 為零時使用 DefaultSideEffectTimeout
type BookingServiceDeps struct {
	TxManager    repository.TxManager
	Services     repository.ServiceRepository
	Schedules    repository.ScheduleRepository
	Bookings     repository.BookingRepository
	Attendees    repository.AttendeeRepository
	Users        repository.UserRepository
	Files        FileService
	Availability cache.ScheduleAvailabilityCache
	Events       queue.BookingEventQueue
	Window       policy.ModificationWindow

	SideEffectTimeout time.Duration
}

type BookingServiceImpl struct {
	tx           repository.TxManager
	services     repository.ServiceRepository
	schedules    repository.ScheduleRepository
	bookings     repository.BookingRepository
	attendees    repository.AttendeeRepository
	users        repository.UserRepository
	files        FileService
	availability cache.ScheduleAvailabilityCache
	events       queue.BookingEventQueue
	window       policy.ModificationWindow
	now          func() time.Time

	sideEffectTimeout time.Duration
}

func NewBookingService(deps BookingServiceDeps) BookingService {
	timeout := deps.SideEffectTimeout
	if timeout <= 0 {
		timeout = DefaultSideEffectTimeout
	}
	return &BookingServiceImpl{
		tx:           deps.TxManager,
		services:     deps.Services,
		schedules:    deps.Schedules,
		bookings:     deps.Bookings,
		attendees:    deps.Attendees,
		users:        deps.Users,
		files:        deps.Files,
		availability: deps.Availability,
		events:       deps.Events,
		window:       deps.Window,
		now:          time.Now,

		sideEffectTimeout: timeout,
	}
}

func (s *BookingServiceImpl) CreateBooking(ctx context.Context, req model.CreateBookingRequest, actor model.Actor) (booking *model.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "BookingService.CreateBooking",
		attribute.String("schedule.id", req.ScheduleID.String()),
		attribute.Int("booking.attendees", len(req.Attendees)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	inputs, err := normalizeAttendees(req.Attendees)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "at least one attendee is required")
	}

	var schedule *model.Schedule
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// 1. 鎖住日期列，直到交易結束
		locked, err := s.schedules.FindByIDWithLock(ctx, tx, req.ScheduleID)
		if err != nil {
			return err
		}

		// 2. 服務可預約且日期啟用中
		svc, err := s.services.FindByIDInTx(ctx, tx, locked.ServiceID)
		if err != nil {
			return err
		}
		if err := checkBookable(svc, locked); err != nil {
			return err
		}

		// 3. 名額檢查
		n := len(inputs)
		if !locked.CanAccommodate(n) {
			return capacityExceeded(locked, n)
		}

		// 4. 建立預約與參加者
		created, err := s.bookings.Create(ctx, tx, &model.Booking{
			UserID:     actor.ID,
			ServiceID:  svc.ID,
			ScheduleID: locked.ID,
			Status:     model.BookingStatusPendingPayment,
			TotalPrice: svc.BasePrice * int64(n),
			BalanceDue: 0,
		})
		if err != nil {
			return err
		}

		attendees, err := s.linkAttendees(ctx, tx, created.ID, inputs)
		if err != nil {
			return err
		}
		if err := s.attendees.CreateBatch(ctx, tx, attendees); err != nil {
			return err
		}

		// 5. 佔用名額
		schedule, err = s.schedules.AdjustBookedCount(ctx, tx, locked.ID, n)
		if err != nil {
			return err
		}

		created.Attendees = attendees
		created.AttendeeCount = n
		created.ScheduleDate = &schedule.Date
		booking = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, model.BookingEventCreated, booking, actor, schedule)
	return booking, nil
}

func (s *BookingServiceImpl) CancelBooking(ctx context.Context, id uuid.UUID, actor model.Actor) (booking *model.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "BookingService.CancelBooking", attribute.String("booking.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	var schedule *model.Schedule
	err = s.withLockedBooking(ctx, id, func(ctx context.Context, tx pgx.Tx, b *model.Booking, locked *model.Schedule) error {
		if !actor.CanAccess(b.UserID) {
			return apperrors.ErrForbidden
		}
		if b.Status.IsTerminal() {
			return invalidTransition(b.Status, model.BookingStatusCancelled)
		}
		if err := s.window.Check(locked.Date, s.now(), actor.IsAdmin()); err != nil {
			return err
		}

		if err := s.bookings.UpdateStatus(ctx, tx, b.ID, model.BookingStatusCancelled); err != nil {
			return err
		}
		// 釋放名額
		schedule, err = s.schedules.AdjustBookedCount(ctx, tx, locked.ID, -b.AttendeeCount)
		if err != nil {
			return err
		}

		b.Status = model.BookingStatusCancelled
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, model.BookingEventCancelled, booking, actor, schedule)
	return booking, nil
}

func (s *BookingServiceImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus, actor model.Actor) (booking *model.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "BookingService.UpdateStatus",
		attribute.String("booking.id", id.String()),
		attribute.String("booking.status", string(status)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	if !status.IsValid() {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "unknown booking status %q", status)
	}

	var schedule *model.Schedule
	err = s.withLockedBooking(ctx, id, func(ctx context.Context, tx pgx.Tx, b *model.Booking, locked *model.Schedule) error {
		if !b.Status.CanTransitionTo(status) {
			return invalidTransition(b.Status, status)
		}
		if err := s.bookings.UpdateStatus(ctx, tx, b.ID, status); err != nil {
			return err
		}
		if status == model.BookingStatusCancelled {
			schedule, err = s.schedules.AdjustBookedCount(ctx, tx, locked.ID, -b.AttendeeCount)
			if err != nil {
				return err
			}
		}

		b.Status = status
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := model.BookingEventStatusChanged
	if status == model.BookingStatusCancelled {
		eventType = model.BookingEventCancelled
	}
	s.afterCommit(ctx, eventType, booking, actor, schedule)
	return booking, nil
}

func (s *BookingServiceImpl) Reschedule(ctx context.Context, id uuid.UUID, scheduleID uuid.UUID, actor model.Actor) (booking *model.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "BookingService.Reschedule",
		attribute.String("booking.id", id.String()),
		attribute.String("schedule.id", scheduleID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	current, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(current.UserID) {
		return nil, apperrors.ErrForbidden
	}
	if current.ScheduleID == scheduleID {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "booking is already on this schedule")
	}

	var from, to *model.Schedule
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// 兩個日期依 id 由小到大上鎖，再鎖預約
		locked := make(map[uuid.UUID]*model.Schedule, 2)
		for _, sid := range lockOrder(current.ScheduleID, scheduleID) {
			sch, err := s.schedules.FindByIDWithLock(ctx, tx, sid)
			if err != nil {
				return err
			}
			locked[sid] = sch
		}

		b, err := s.lockBookingRow(ctx, tx, id, current.ScheduleID)
		if err != nil {
			return err
		}
		if b.Status.IsTerminal() {
			return apperrors.WithDetail(apperrors.ErrInvalidTransition, "booking is %s", b.Status)
		}

		src, dst := locked[current.ScheduleID], locked[scheduleID]
		if dst.ServiceID != b.ServiceID {
			return apperrors.WithDetail(apperrors.ErrInvalidInput, "target schedule belongs to another service")
		}
		if err := s.window.Check(src.Date, s.now(), actor.IsAdmin()); err != nil {
			return err
		}

		svc, err := s.services.FindByIDInTx(ctx, tx, b.ServiceID)
		if err != nil {
			return err
		}
		if err := checkBookable(svc, dst); err != nil {
			return err
		}
		if !dst.CanAccommodate(b.AttendeeCount) {
			return capacityExceeded(dst, b.AttendeeCount)
		}

		if from, err = s.schedules.AdjustBookedCount(ctx, tx, src.ID, -b.AttendeeCount); err != nil {
			return err
		}
		if to, err = s.schedules.AdjustBookedCount(ctx, tx, dst.ID, b.AttendeeCount); err != nil {
			return err
		}
		if err := s.bookings.UpdateSchedule(ctx, tx, b.ID, dst.ID); err != nil {
			return err
		}

		b.ScheduleID = dst.ID
		b.ScheduleDate = &to.Date
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, model.BookingEventRescheduled, booking, actor, from, to)
	return booking, nil
}

func (s *BookingServiceImpl) UploadPaymentProof(ctx context.Context, id uuid.UUID, upload FileUpload, actor model.Actor) (*model.Booking, error) {
	current, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(current.UserID) {
		return nil, apperrors.ErrForbidden
	}

	// 不動名額，只鎖預約列
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		b, err := s.bookings.FindByIDWithLock(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status.IsTerminal() {
			return apperrors.WithDetail(apperrors.ErrInvalidTransition, "booking is %s", b.Status)
		}

		file, err := s.files.Create(ctx, tx, upload, b.UserID, false, model.FileCategoryPaymentProof)
		if err != nil {
			return err
		}
		return s.bookings.SetPaymentProof(ctx, tx, b.ID, file.ID)
	})
	if err != nil {
		return nil, err
	}

	return s.loadBooking(ctx, id)
}

func (s *BookingServiceImpl) GetBooking(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Booking, error) {
	booking, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(booking.UserID) {
		return nil, apperrors.ErrForbidden
	}
	return booking, nil
}

func (s *BookingServiceImpl) ListBookings(ctx context.Context, page model.PageQuery, actor model.Actor) ([]*model.Booking, int, error) {
	filter := model.BookingFilter{
		Limit:  page.Limit,
		Offset: page.Offset(),
	}
	if !actor.IsAdmin() {
		filter.UserID = &actor.ID
	}
	return s.bookings.List(ctx, filter)
}

func (s *BookingServiceImpl) ListAttended(ctx context.Context, actor model.Actor) ([]*model.Booking, error) {
	return s.bookings.ListAttendedByUser(ctx, actor.ID)
}

func (s *BookingServiceImpl) loadBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	attendees, err := s.attendees.FindByBookingID(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.Attendees = attendees
	return booking, nil
}

type lockedBookingFunc func(ctx context.Context, tx pgx.Tx, booking *model.Booking, schedule *model.Schedule) error

// withLockedBooking 先鎖日期再鎖預約，與建立預約的上鎖順序相同
func (s *BookingServiceImpl) withLockedBooking(ctx context.Context, id uuid.UUID, fn lockedBookingFunc) error {
	current, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return err
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		schedule, err := s.schedules.FindByIDWithLock(ctx, tx, current.ScheduleID)
		if err != nil {
			return err
		}
		booking, err := s.lockBookingRow(ctx, tx, id, schedule.ID)
		if err != nil {
			return err
		}
		return fn(ctx, tx, booking, schedule)
	})
}

// lockBookingRow 鎖住預約並載入參加者；預約必須仍屬於呼叫端已鎖住的 scheduleID
func (s *BookingServiceImpl) lockBookingRow(ctx context.Context, tx pgx.Tx, id, scheduleID uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.FindByIDWithLock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if booking.ScheduleID != scheduleID {
		return nil, apperrors.WithDetail(apperrors.ErrConflict, "booking was moved to another schedule")
	}

	attendees, err := s.attendees.FindByBookingIDInTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	booking.Attendees = attendees
	booking.AttendeeCount = len(attendees)
	return booking, nil
}

// linkAttendees 依 email 優先、其次 phone 連結既有使用者
func (s *BookingServiceImpl) linkAttendees(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, inputs []model.AttendeeInput) ([]*model.Attendee, error) {
	var emails, phones []string
	for _, in := range inputs {
		if in.Email != nil {
			emails = append(emails, *in.Email)
		}
		if in.Phone != nil {
			phones = append(phones, *in.Phone)
		}
	}

	byEmail := make(map[string]uuid.UUID)
	if len(emails) > 0 {
		users, err := s.users.FindByEmails(ctx, tx, emails)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Email != nil {
				byEmail[*u.Email] = u.ID
			}
		}
	}

	byPhone := make(map[string]uuid.UUID)
	if len(phones) > 0 {
		users, err := s.users.FindByPhones(ctx, tx, phones)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Phone != nil {
				byPhone[*u.Phone] = u.ID
			}
		}
	}

	attendees := make([]*model.Attendee, 0, len(inputs))
	for _, in := range inputs {
		a := &model.Attendee{
			ID:        uuid.New(),
			BookingID: bookingID,
			Name:      in.Name,
			Email:     in.Email,
			Phone:     in.Phone,
		}
		if in.Email != nil {
			if id, ok := byEmail[*in.Email]; ok {
				a.UserID = &id
			}
		}
		if a.UserID == nil && in.Phone != nil {
			if id, ok := byPhone[*in.Phone]; ok {
				a.UserID = &id
			}
		}
		attendees = append(attendees, a)
	}
	return attendees, nil
}

// afterCommit 更新快取並發布事件；失敗只記錄，不影響已提交的交易
// 每個步驟最多等待 sideEffectTimeout，佇列塞滿時請求仍會返回
func (s *BookingServiceImpl) afterCommit(ctx context.Context, eventType model.BookingEventType, booking *model.Booking, actor model.Actor, schedules ...*model.Schedule) {
	log := logger.WithComponent("service").With(
		zap.String("booking_id", booking.ID.String()),
		zap.String("event", string(eventType)),
	)

	if s.availability != nil {
		for _, schedule := range schedules {
			if schedule == nil {
				continue
			}
			err := withDetachedTimeout(ctx, s.sideEffectTimeout, func(ctx context.Context) error {
				return s.availability.Set(ctx, schedule)
			})
			if err != nil {
				log.Warn("failed to refresh availability cache",
					zap.String("schedule_id", schedule.ID.String()),
					zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
					zap.Error(err))
			}
		}
	}

	if s.events == nil {
		return
	}
	event := model.NewBookingEvent(eventType, booking, actor)
	err := withDetachedTimeout(ctx, s.sideEffectTimeout, func(ctx context.Context) error {
		return s.events.Publish(ctx, event)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		log.Error("timed out publishing booking event",
			zap.String("event_id", event.ID.String()),
			zap.Duration("timeout", s.sideEffectTimeout))
		return
	}
	if err != nil {
		log.Error("failed to publish booking event", zap.Error(err))
	}
}

// withDetachedTimeout 不隨請求取消，但最多執行 timeout
func withDetachedTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return fn(ctx)
}

func normalizeAttendees(inputs []model.AttendeeInput) ([]model.AttendeeInput, error) {
	out := make([]model.AttendeeInput, 0, len(inputs))
	for i, in := range inputs {
		in = in.Normalize()
		if !in.IsValid() {
			return nil, apperrors.WithDetail(apperrors.ErrInvalidInput,
				"attendee %d needs a name and a valid email or phone", i+1)
		}
		out = append(out, in)
	}
	return out, nil
}

func checkBookable(svc *model.Service, schedule *model.Schedule) error {
	switch {
	case svc.IsDeleted():
		return apperrors.WithDetail(apperrors.ErrNotBookable, "service has been removed")
	case !svc.IsBookable:
		return apperrors.WithDetail(apperrors.ErrNotBookable, "service is not open for booking")
	case schedule.IsDeleted():
		return apperrors.WithDetail(apperrors.ErrNotBookable, "schedule has been removed")
	case !schedule.IsActive:
		return apperrors.WithDetail(apperrors.ErrNotBookable, "schedule is not active")
	}
	return nil
}

func capacityExceeded(schedule *model.Schedule, requested int) error {
	return apperrors.WithFields(apperrors.ErrCapacityExceeded,
		map[string]interface{}{
			"requested": requested,
			"remaining": schedule.Remaining(),
		},
		"requested %d seat(s) but only %d remaining", requested, schedule.Remaining())
}

func invalidTransition(from, to model.BookingStatus) error {
	return apperrors.WithFields(apperrors.ErrInvalidTransition,
		map[string]interface{}{"from": from, "to": to},
		"cannot move booking from %s to %s", from, to)
}

// lockOrder 回傳由小到大排序的 id，固定上鎖順序避免死鎖
func lockOrder(a, b uuid.UUID) []uuid.UUID {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return []uuid.UUID{a, b}
	}
	return []uuid.UUID{b, a}
}
