// Package messaging persists lifecycle events through a transactional outbox
// and relays them to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SamGorr/tscmf-system/pkg/db"
	"github.com/SamGorr/tscmf-system/pkg/metrics"
)

const (
	statusPending = "pending"
	statusSent    = "sent"
)

type OutboxMessage struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	EventType string    `gorm:"column:event_type;type:varchar(100);index"`
	Payload   string    `gorm:"column:payload;type:text"`
	Status    string    `gorm:"column:status;type:varchar(20);index;default:'pending'"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (OutboxMessage) TableName() string { return "outbox_messages" }

// OutboxEventPublisher writes events to the outbox table. Inside a unit of
// work the row joins the caller's transaction, so the event and the state
// change it describes commit together.
type OutboxEventPublisher struct {
	db *gorm.DB
}

func NewOutboxEventPublisher(gdb *gorm.DB) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: gdb}
}

func (p *OutboxEventPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := OutboxMessage{
		ID:        uuid.New().String(),
		EventType: eventType,
		Payload:   string(data),
		Status:    statusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return db.FromContext(ctx, p.db).WithContext(ctx).Create(&msg).Error
}

// Producer is the Kafka side of the relay.
type Producer interface {
	SendRaw(ctx context.Context, key string, payload []byte) error
}

// OutboxRelay drains pending outbox rows into Kafka on an interval.
type OutboxRelay struct {
	db        *gorm.DB
	producer  Producer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(gdb *gorm.DB, producer Producer, m *metrics.Metrics, logger *slog.Logger, interval time.Duration, batchSize int) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		db:        gdb,
		producer:  producer,
		metrics:   m,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run relays until the context is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

func (r *OutboxRelay) drain(ctx context.Context) error {
	var messages []OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", statusPending).
		Order("created_at ASC").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}

	var pending int64
	if err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("status = ?", statusPending).
		Count(&pending).Error; err == nil {
		r.metrics.OutboxPendingEvents.Set(float64(pending))
	}

	for _, msg := range messages {
		if err := r.producer.SendRaw(ctx, msg.EventType, []byte(msg.Payload)); err != nil {
			// Leave the row pending; the next pass retries in order.
			return err
		}
		err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
			Where("id = ?", msg.ID).
			Updates(map[string]any{"status": statusSent, "updated_at": time.Now()}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Cleanup deletes relayed rows older than before.
func (r *OutboxRelay) Cleanup(ctx context.Context, before time.Time) error {
	return r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", statusSent, before).
		Delete(&OutboxMessage{}).Error
}
