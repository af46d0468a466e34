package worker

import (
	"context"
	"go-gin-trip-booking/internal/notify"
	"go-gin-trip-booking/internal/queue"
	"go-gin-trip-booking/pkg/logger"

	"go.uber.org/zap"
)

type BookingEventWorker interface {
	// Start 阻塞直到 ctx 取消或訂閱結束
	Start(ctx context.Context) error
}

type BookingEventWorkerImpl struct {
	notifier notify.Notifier
	queue    queue.BookingEventQueue
}

func NewBookingEventWorker(notifier notify.Notifier, queue queue.BookingEventQueue) BookingEventWorker {
	return &BookingEventWorkerImpl{
		notifier: notifier,
		queue:    queue,
	}
}

func (w *BookingEventWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		return err
	}

	log := logger.WithComponent("worker")
	for msg := range msgs {
		if err := w.notifier.Notify(ctx, msg.Data); err != nil {
			// 通知失敗（例如外部服務暫時不可用）就重試
			log.Warn("notify failed, requeue",
				zap.String("event_id", msg.Data.ID.String()),
				zap.String("type", string(msg.Data.Type)),
				zap.Error(err))
			msg.Nack(true)
			continue
		}
		msg.Ack()
	}
	return nil
}
