package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingEventType string

const (
	BookingEventCreated          BookingEventType = "booking.created"
	BookingEventCancelled        BookingEventType = "booking.cancelled"
	BookingEventAttendeesUpdated BookingEventType = "booking.attendees_updated"
	BookingEventStatusChanged    BookingEventType = "booking.status_changed"
	BookingEventRescheduled      BookingEventType = "booking.rescheduled"
)

// BookingEvent 交易提交後發布到佇列的預約事件
type BookingEvent struct {
	ID            uuid.UUID        `json:"id"`
	Type          BookingEventType `json:"type"`
	BookingID     uuid.UUID        `json:"booking_id"`
	UserID        uuid.UUID        `json:"user_id"`
	ScheduleID    uuid.UUID        `json:"schedule_id"`
	Status        BookingStatus    `json:"status"`
	AttendeeCount int              `json:"attendee_count"`
	ActorID       uuid.UUID        `json:"actor_id"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

func NewBookingEvent(t BookingEventType, b *Booking, actor Actor) *BookingEvent {
	return &BookingEvent{
		ID:            uuid.New(),
		Type:          t,
		BookingID:     b.ID,
		UserID:        b.UserID,
		ScheduleID:    b.ScheduleID,
		Status:        b.Status,
		AttendeeCount: b.AttendeeCount,
		ActorID:       actor.ID,
		OccurredAt:    time.Now().UTC(),
	}
}
