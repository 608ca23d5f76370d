package models

import "time"

// Action is the commerce-side effect an outbox message requests.
type Action string

const (
	ActionActivate   Action = "activate"
	ActionCompensate Action = "compensate"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxDead      OutboxStatus = "dead"
)

// OutboxMessage is a commerce notification persisted in the same storage
// transaction as the decision that produced it.
type OutboxMessage struct {
	ID            string       `json:"id" db:"id"`
	TransactionID string       `json:"transactionId" db:"transaction_id"`
	CorrelationID string       `json:"correlationId" db:"correlation_id"`
	Kind          Kind         `json:"kind" db:"kind"`
	Action        Action       `json:"action" db:"action"`
	Status        OutboxStatus `json:"status" db:"status"`
	Attempts      int          `json:"attempts" db:"attempts"`
	LastError     string       `json:"lastError,omitempty" db:"last_error"`
	NextAttemptAt time.Time    `json:"nextAttemptAt" db:"next_attempt_at"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	DeliveredAt   *time.Time   `json:"deliveredAt,omitempty" db:"delivered_at"`
}
