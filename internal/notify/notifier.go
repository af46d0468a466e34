package notify

import (
	"context"
	"go-gin-trip-booking/internal/model"

	"go.uber.org/zap"
)

// Notifier 將預約事件通知相關的人；email、WhatsApp 等管道實作此介面
type Notifier interface {
	Notify(ctx context.Context, event *model.BookingEvent) error
}

type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) Notifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, event *model.BookingEvent) error {
	n.log.Info("booking notification",
		zap.String("event_id", event.ID.String()),
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID.String()),
		zap.String("user_id", event.UserID.String()),
		zap.String("schedule_id", event.ScheduleID.String()),
		zap.String("status", string(event.Status)),
		zap.Int("attendee_count", event.AttendeeCount),
	)
	return nil
}
