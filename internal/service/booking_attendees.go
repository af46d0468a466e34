package service

import (
	"context"
	"fmt"
	"go-gin-trip-booking/internal/model"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"go-gin-trip-booking/pkg/telemetry"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

func (s *BookingServiceImpl) UpdateAttendees(ctx context.Context, id uuid.UUID, req model.UpdateAttendeesRequest, actor model.Actor) (booking *model.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "BookingService.UpdateAttendees",
		attribute.String("booking.id", id.String()),
		attribute.Int("attendees.add", len(req.Add)),
		attribute.Int("attendees.update", len(req.Update)),
		attribute.Int("attendees.remove", len(req.Remove)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if req.IsEmpty() {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "nothing to change")
	}
	adds, err := normalizeAttendees(req.Add)
	if err != nil {
		return nil, err
	}

	var schedule *model.Schedule
	err = s.withLockedBooking(ctx, id, func(ctx context.Context, tx pgx.Tx, b *model.Booking, locked *model.Schedule) error {
		if !actor.CanAccess(b.UserID) {
			return apperrors.ErrForbidden
		}
		if b.Status.IsTerminal() {
			return apperrors.WithDetail(apperrors.ErrInvalidTransition, "booking is %s", b.Status)
		}

		current := make(map[uuid.UUID]*model.Attendee, len(b.Attendees))
		for _, a := range b.Attendees {
			current[a.ID] = a
		}
		schedule = locked

		// 1. 刪除
		if len(req.Remove) > 0 {
			updated, err := s.removeAttendees(ctx, tx, b, schedule, current, req.Remove, actor)
			if err != nil {
				return err
			}
			schedule = updated
		}

		// 2. 修改，不影響名額
		for _, u := range req.Update {
			if err := s.editAttendee(ctx, tx, current, u); err != nil {
				return err
			}
		}

		// 3. 新增
		if len(adds) > 0 {
			updated, err := s.addAttendees(ctx, tx, b, schedule, current, adds)
			if err != nil {
				return err
			}
			schedule = updated
		}

		b.Attendees = make([]*model.Attendee, 0, len(current))
		for _, a := range current {
			b.Attendees = append(b.Attendees, a)
		}
		b.AttendeeCount = len(current)
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 重新讀取以取得排序後的參加者與最新金額
	if fresh, err := s.loadBooking(ctx, id); err == nil {
		booking = fresh
	}
	s.afterCommit(ctx, model.BookingEventAttendeesUpdated, booking, actor, schedule)
	return booking, nil
}

func (s *BookingServiceImpl) removeAttendees(
	ctx context.Context,
	tx pgx.Tx,
	b *model.Booking,
	schedule *model.Schedule,
	current map[uuid.UUID]*model.Attendee,
	remove []uuid.UUID,
	actor model.Actor,
) (*model.Schedule, error) {
	ids := make([]uuid.UUID, 0, len(remove))
	seen := make(map[uuid.UUID]struct{}, len(remove))
	for _, id := range remove {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := current[id]; !ok {
			return nil, apperrors.WithDetail(apperrors.ErrAttendeeNotFound, "attendee %s is not on this booking", id)
		}
		ids = append(ids, id)
	}

	if len(current)-len(ids) < 1 {
		return nil, apperrors.WithFields(apperrors.ErrMinimumAttendeeViolation,
			map[string]interface{}{
				"current": len(current),
				"remove":  len(ids),
			},
			"a booking must keep at least one attendee")
	}

	if err := s.window.Check(schedule.Date, s.now(), actor.IsAdmin()); err != nil {
		return nil, err
	}

	deleted, err := s.attendees.DeleteByIDs(ctx, tx, b.ID, ids)
	if err != nil {
		return nil, err
	}
	if deleted != len(ids) {
		return nil, fmt.Errorf("deleted %d of %d attendees", deleted, len(ids))
	}

	updated, err := s.schedules.AdjustBookedCount(ctx, tx, schedule.ID, -len(ids))
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		delete(current, id)
	}
	return updated, nil
}

// editAttendee 空字串代表清除該聯絡方式；使用者連結不會重新解析
func (s *BookingServiceImpl) editAttendee(ctx context.Context, tx pgx.Tx, current map[uuid.UUID]*model.Attendee, u model.AttendeeUpdate) error {
	existing, ok := current[u.ID]
	if !ok {
		return apperrors.WithDetail(apperrors.ErrAttendeeNotFound, "attendee %s is not on this booking", u.ID)
	}

	next := *existing
	if u.Name != nil {
		next.Name = strings.TrimSpace(*u.Name)
	}
	if u.Email != nil {
		next.Email = model.TrimOrNil(u.Email)
	}
	if u.Phone != nil {
		next.Phone = model.TrimOrNil(u.Phone)
	}
	if !model.IsValidContact(next.Name, next.Email, next.Phone) {
		return apperrors.WithDetail(apperrors.ErrInvalidInput,
			"attendee %s needs a name and a valid email or phone", u.ID)
	}

	if err := s.attendees.Update(ctx, tx, &next); err != nil {
		return err
	}
	current[u.ID] = &next
	return nil
}

func (s *BookingServiceImpl) addAttendees(
	ctx context.Context,
	tx pgx.Tx,
	b *model.Booking,
	schedule *model.Schedule,
	current map[uuid.UUID]*model.Attendee,
	adds []model.AttendeeInput,
) (*model.Schedule, error) {
	n := len(adds)
	if !schedule.CanAccommodate(n) {
		return nil, capacityExceeded(schedule, n)
	}

	svc, err := s.services.FindByIDInTx(ctx, tx, b.ServiceID)
	if err != nil {
		return nil, err
	}

	attendees, err := s.linkAttendees(ctx, tx, b.ID, adds)
	if err != nil {
		return nil, err
	}
	if err := s.attendees.CreateBatch(ctx, tx, attendees); err != nil {
		return nil, err
	}

	updated, err := s.schedules.AdjustBookedCount(ctx, tx, schedule.ID, n)
	if err != nil {
		return nil, err
	}

	// 追加人數的費用計入尚未付清的金額
	if err := s.bookings.AddBalanceDue(ctx, tx, b.ID, svc.BasePrice*int64(n)); err != nil {
		return nil, err
	}
	b.BalanceDue += svc.BasePrice * int64(n)

	for _, a := range attendees {
		current[a.ID] = a
	}
	return updated, nil
}
