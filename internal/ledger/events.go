package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/models"
)

// EventsChannel is the Redis pub/sub channel reviewer dashboards subscribe to.
const EventsChannel = "settlement_events"

type SettlementEvent struct {
	TransactionID string          `json:"transactionId"`
	Kind          models.Kind     `json:"kind"`
	Status        models.Status   `json:"status"`
	CorrelationID string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func eventFor(t *models.Transaction, at time.Time) SettlementEvent {
	return SettlementEvent{
		TransactionID: t.ID,
		Kind:          t.Kind,
		Status:        t.Status,
		CorrelationID: t.CorrelationID,
		Amount:        t.Amount,
		OccurredAt:    at,
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event SettlementEvent)
}

// RedisPublisher publishes best effort; a failed publish is logged and
// never affects the settlement that produced it.
type RedisPublisher struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, event SettlementEvent) {
	if p == nil || p.rdb == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("Failed to encode settlement event", zap.Error(err))
		return
	}

	if err := p.rdb.Publish(ctx, EventsChannel, string(payload)).Err(); err != nil {
		p.log.Warn("Failed to publish settlement event",
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err))
	}
}
