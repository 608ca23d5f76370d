package audit

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Event struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	TransactionID string            `json:"transaction_id"`
	AccountID     string            `json:"account_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        string            `json:"status"`
	Details       map[string]string `json:"details,omitempty"`
}

// Logger writes AUDIT records for every money movement and decision.
type Logger struct {
	log *zap.Logger
}

func NewLogger(l *zap.Logger) *Logger {
	return &Logger{log: l.Named("audit")}
}

func (a *Logger) LogTransfer(transactionID, fromAccount, toAccount string, amount decimal.Decimal, status string) {
	a.write(Event{
		Timestamp:     time.Now(),
		EventType:     "TRANSFER",
		TransactionID: transactionID,
		Amount:        amount,
		Status:        status,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

func (a *Logger) LogDecision(transactionID, outcome, status string) {
	a.write(Event{
		Timestamp:     time.Now(),
		EventType:     "DECISION",
		TransactionID: transactionID,
		Status:        status,
		Details:       map[string]string{"outcome": outcome},
	})
}

func (a *Logger) LogError(transactionID, accountID string, err error) {
	a.write(Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(transactionID, accountID, operation, details string) {
	a.write(Event{
		Timestamp:     time.Now(),
		EventType:     operation,
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	})
}

func (a *Logger) write(event Event) {
	a.log.Info("AUDIT",
		zap.String("event_type", event.EventType),
		zap.String("transaction_id", event.TransactionID),
		zap.String("account_id", event.AccountID),
		zap.Stringer("amount", event.Amount),
		zap.String("status", event.Status),
		zap.Any("details", event.Details),
		zap.Time("event_time", event.Timestamp),
	)
}
