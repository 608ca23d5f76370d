package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/models"
)

// ListOutbox backs the operator queue. Dead messages are notifications the
// dispatcher gave up on and that need a human to retry them.
func (s *Service) ListOutbox(ctx context.Context, status models.OutboxStatus, limit, offset int) ([]*models.OutboxMessage, error) {
	return s.store.ListOutbox(ctx, status, limit, offset)
}

// RetryOutbox puts a message back in the delivery queue with a fresh attempt
// budget. Delivered messages stay delivered.
func (s *Service) RetryOutbox(ctx context.Context, id string) (*models.OutboxMessage, error) {
	id, err := parseID(id, models.ErrOutboxNotFound)
	if err != nil {
		return nil, err
	}
	msg, err := s.store.GetOutbox(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Status == models.OutboxDelivered {
		return nil, fmt.Errorf("%w: outbox message %s already delivered", models.ErrAlreadyProcessed, id)
	}

	msg.Status = models.OutboxPending
	msg.Attempts = 0
	msg.LastError = ""
	msg.NextAttemptAt = s.now()
	if err := s.store.UpdateOutbox(ctx, msg); err != nil {
		return nil, err
	}

	s.audit.LogOperation(msg.TransactionID, "", "OUTBOX_RETRY", string(msg.Action))
	s.log.Info("Outbox message requeued by operator",
		zap.String("outbox_id", msg.ID),
		zap.String("transaction_id", msg.TransactionID))
	s.wake()
	return msg, nil
}
