package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/pkg/logger"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StreamKey          = "bookings:events"
	ConsumerGroupName  = "booking-notifiers"
	ConsumerNamePrefix = "worker"
	eventField         = "event"
)

// RedisStreamConfig 可注入的逾時與重試設定；零值時使用預設。
type RedisStreamConfig struct {
	ClaimMinIdleTime   time.Duration // PEL 中超過此時間才被 XAUTOCLAIM 領取
	MaxRetryCount      int           // 超過此次數視為毒藥消息並丟棄
	ReadGroupBlockTime time.Duration // XReadGroup 阻塞時間
}

func (c RedisStreamConfig) withDefaults() RedisStreamConfig {
	if c.ClaimMinIdleTime <= 0 {
		c.ClaimMinIdleTime = 5 * time.Second
	}
	if c.MaxRetryCount <= 0 {
		c.MaxRetryCount = 5
	}
	if c.ReadGroupBlockTime <= 0 {
		c.ReadGroupBlockTime = 2 * time.Second
	}
	return c
}

type RedisStreamBookingQueue struct {
	client       *redis.Client
	streamKey    string
	groupName    string
	consumerName string
	cfg          RedisStreamConfig
}

func NewRedisStreamBookingQueue(ctx context.Context, client *redis.Client, consumerID string, cfg RedisStreamConfig) (*RedisStreamBookingQueue, error) {
	if consumerID == "" {
		consumerID = uuid.New().String()
	}
	q := &RedisStreamBookingQueue{
		client:       client,
		streamKey:    StreamKey,
		groupName:    ConsumerGroupName,
		consumerName: fmt.Sprintf("%s:%s", ConsumerNamePrefix, consumerID),
		cfg:          cfg.withDefaults(),
	}
	if err := q.ensureConsumerGroup(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer group: %w", err)
	}
	return q, nil
}

func (q *RedisStreamBookingQueue) ensureConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.streamKey, q.groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (q *RedisStreamBookingQueue) Publish(ctx context.Context, event *model.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey,
		ID:     "*",
		Values: map[string]interface{}{eventField: string(body)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

func (q *RedisStreamBookingQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	done := make(chan struct{})
	go func() {
		q.runAutoClaim(ctx, out)
		close(done)
	}()
	go func() {
		q.runReadLoop(ctx, out)
		<-done
		close(out)
	}()
	return out, nil
}

// runReadLoop 只讀 ">"（新訊息）；未 Ack 的訊息留在 PEL，由 XAUTOCLAIM 超時後領回重試
func (q *RedisStreamBookingQueue) runReadLoop(ctx context.Context, out chan<- Delivery) {
	log := logger.WithComponent("mq")
	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.groupName,
			Consumer: q.consumerName,
			Streams:  []string{q.streamKey, ">"},
			Count:    10,
			Block:    q.cfg.ReadGroupBlockTime,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("XReadGroup failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if !q.deliver(ctx, out, msg) {
					return
				}
			}
		}
	}
}

// runAutoClaim 定時用 XAUTOCLAIM 領取超時未處理的消息
func (q *RedisStreamBookingQueue) runAutoClaim(ctx context.Context, out chan<- Delivery) {
	log := logger.WithComponent("mq")
	ticker := time.NewTicker(q.cfg.ClaimMinIdleTime)
	defer ticker.Stop()
	startID := "0-0"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, nextID, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   q.streamKey,
				Group:    q.groupName,
				Consumer: q.consumerName,
				MinIdle:  q.cfg.ClaimMinIdleTime,
				Count:    10,
				Start:    startID,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Error("XAutoClaim failed", zap.Error(err))
				continue
			}
			startID = nextID
			if startID == "" {
				startID = "0-0"
			}

			for _, msg := range claimed {
				if q.isPoison(ctx, msg.ID) {
					continue
				}
				if !q.deliver(ctx, out, msg) {
					return
				}
			}
		}
	}
}

// isPoison 超過重試上限的消息直接 Ack 丟棄
func (q *RedisStreamBookingQueue) isPoison(ctx context.Context, messageID string) bool {
	log := logger.WithComponent("mq").With(zap.String("message_id", messageID))
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.streamKey,
		Group:  q.groupName,
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Warn("XPendingExt failed", zap.Error(err))
		}
		return false
	}
	if int(pending[0].RetryCount) < q.cfg.MaxRetryCount {
		return false
	}

	log.Warn("discard poison message", zap.Int64("retries", pending[0].RetryCount), zap.Int("max_retries", q.cfg.MaxRetryCount))
	_ = q.client.XAck(ctx, q.streamKey, q.groupName, messageID).Err()
	return true
}

// deliver ctx 結束時回傳 false
func (q *RedisStreamBookingQueue) deliver(ctx context.Context, out chan<- Delivery, msg redis.XMessage) bool {
	d := q.newDelivery(ctx, msg)
	if d == nil {
		return true
	}
	select {
	case out <- *d:
		return true
	case <-ctx.Done():
		return false
	}
}

// newDelivery 從 Redis 消息組裝 Delivery（含 Ack/Nack）；格式錯誤的消息直接 Ack
func (q *RedisStreamBookingQueue) newDelivery(ctx context.Context, msg redis.XMessage) *Delivery {
	log := logger.WithComponent("mq").With(zap.String("message_id", msg.ID))

	raw, ok := msg.Values[eventField].(string)
	var event model.BookingEvent
	if !ok || json.Unmarshal([]byte(raw), &event) != nil {
		log.Warn("invalid message, dropping")
		_ = q.client.XAck(ctx, q.streamKey, q.groupName, msg.ID).Err()
		return nil
	}

	msgID := msg.ID
	ack := func() {
		if err := q.client.XAck(ctx, q.streamKey, q.groupName, msgID).Err(); err != nil {
			log.Error("XAck failed", zap.Error(err))
		}
	}
	return &Delivery{
		Data: &event,
		Ack:  ack,
		Nack: func(requeue bool) {
			if requeue {
				// 消息留在 PEL，等 ClaimMinIdleTime 後由 XAUTOCLAIM 領取，形成延遲重試
				log.Info("message nack(requeue), will retry", zap.Duration("claim_min_idle", q.cfg.ClaimMinIdleTime))
				return
			}
			ack()
		},
	}
}
