package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/pkg/logger"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPBookingQueue 透過 default exchange 將預約事件送到 RabbitMQ durable queue
type AMQPBookingQueue struct {
	url       string
	queueName string

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
}

func NewAMQPBookingQueue(url, queueName string) (*AMQPBookingQueue, error) {
	q := &AMQPBookingQueue{url: url, queueName: queueName}
	if err := q.connect(); err != nil {
		return nil, err
	}
	return q, nil
}

// connect 建立連線與發布用 channel，並宣告 durable queue（冪等）
func (q *AMQPBookingQueue) connect() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(q.queueName, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp queue declare: %w", err)
	}
	q.conn = conn
	q.pub = ch
	return nil
}

func (q *AMQPBookingQueue) Publish(ctx context.Context, event *model.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.needsReconnect() {
		// channel 層級的例外只會關閉 channel，舊連線需自行關閉
		if q.conn != nil && !q.conn.IsClosed() {
			_ = q.conn.Close()
		}
		if err := q.connect(); err != nil {
			return err
		}
	}

	return q.pub.PublishWithContext(ctx,
		"",          // default exchange
		q.queueName, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Type:         string(event.Type),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

func (q *AMQPBookingQueue) needsReconnect() bool {
	return q.conn == nil || q.pub == nil || anyClosed(q.conn, q.pub)
}

func anyClosed(parts ...interface{ IsClosed() bool }) bool {
	for _, p := range parts {
		if p.IsClosed() {
			return true
		}
	}
	return false
}

// Subscribe 使用獨立的 channel 消費，斷線時以 backoff 重連，直到 ctx 取消
func (q *AMQPBookingQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		log := logger.WithComponent("mq")
		backoff := time.Second
		for ctx.Err() == nil {
			err := q.consume(ctx, out)
			if ctx.Err() != nil {
				return
			}
			log.Warn("amqp consume loop ended, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
	return out, nil
}

func (q *AMQPBookingQueue) consume(ctx context.Context, out chan<- Delivery) error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	if _, err := ch.QueueDeclare(q.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	log := logger.WithComponent("mq")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			var event model.BookingEvent
			if err := json.Unmarshal(m.Body, &event); err != nil {
				log.Warn("invalid message, rejecting", zap.String("message_id", m.MessageId), zap.Error(err))
				_ = m.Nack(false, false)
				continue
			}
			d := Delivery{
				Data: &event,
				Ack:  func() { _ = m.Ack(false) },
				Nack: func(requeue bool) { _ = m.Nack(false, requeue) },
			}
			select {
			case out <- d:
			case <-ctx.Done():
				_ = m.Nack(false, true)
				return ctx.Err()
			}
		}
	}
}

func (q *AMQPBookingQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}
