package queue

import (
	"context"
	"go-gin-trip-booking/internal/model"
)

type Delivery struct {
	Data *model.BookingEvent
	Ack  func()
	Nack func(requeue bool)
}

// BookingEventQueue 預約事件佇列；提交後發布，由 worker 訂閱後通知
type BookingEventQueue interface {
	Publish(ctx context.Context, event *model.BookingEvent) error
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

type MemoryBookingEventQueue struct {
	// 使用 Go channel 來模擬 MQ 隊列
	ch chan *model.BookingEvent
}

func NewMemoryBookingEventQueue(bufferSize int) BookingEventQueue {
	return &MemoryBookingEventQueue{
		ch: make(chan *model.BookingEvent, bufferSize),
	}
}

func (q *MemoryBookingEventQueue) Publish(ctx context.Context, event *model.BookingEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryBookingEventQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-q.ch:
				d := Delivery{
					Data: event,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if requeue {
							// 非阻塞重回隊列，滿了就丟棄
							select {
							case q.ch <- event:
							default:
							}
						}
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
