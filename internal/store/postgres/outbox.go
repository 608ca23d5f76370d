package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edulearn/backend/internal/models"
)

const outboxColumns = `id, transaction_id, correlation_id, kind, action, status, attempts, last_error, next_attempt_at, created_at, delivered_at`

func insertOutbox(ctx context.Context, db execer, m *models.OutboxMessage) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO outbox_messages (`+outboxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.TransactionID, m.CorrelationID, string(m.Kind), string(m.Action), string(m.Status),
		m.Attempts, m.LastError, m.NextAttemptAt, m.CreatedAt, m.DeliveredAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func scanOutbox(row scanner) (*models.OutboxMessage, error) {
	var m models.OutboxMessage
	var kind, action, status string
	if err := row.Scan(&m.ID, &m.TransactionID, &m.CorrelationID, &kind, &action, &status,
		&m.Attempts, &m.LastError, &m.NextAttemptAt, &m.CreatedAt, &m.DeliveredAt); err != nil {
		return nil, err
	}
	m.Kind = models.Kind(kind)
	m.Action = models.Action(action)
	m.Status = models.OutboxStatus(status)
	return &m, nil
}

func (s *Store) queryOutbox(ctx context.Context, query string, args ...any) ([]*models.OutboxMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	out := make([]*models.OutboxMessage, 0)
	for rows.Next() {
		m, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DueOutbox returns pending messages whose next attempt is at or before now,
// oldest first. Concurrent drainers are kept apart by the dispatcher lease.
func (s *Store) DueOutbox(ctx context.Context, now time.Time, limit int) ([]*models.OutboxMessage, error) {
	return s.queryOutbox(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_messages
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY created_at, id
		LIMIT $2`, now, limit)
}

func (s *Store) GetOutbox(ctx context.Context, id string) (*models.OutboxMessage, error) {
	m, err := scanOutbox(s.db.QueryRowContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox_messages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOutboxNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select outbox message: %w", err)
	}
	return m, nil
}

func (s *Store) ListOutbox(ctx context.Context, status models.OutboxStatus, limit, offset int) ([]*models.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	if status == "" {
		return s.queryOutbox(ctx, `
			SELECT `+outboxColumns+`
			FROM outbox_messages
			ORDER BY created_at, id
			LIMIT $1 OFFSET $2`, limit, offset)
	}
	return s.queryOutbox(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
}

func (s *Store) UpdateOutbox(ctx context.Context, m *models.OutboxMessage) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, attempts = $2, last_error = $3, next_attempt_at = $4, delivered_at = $5
		WHERE id = $6`,
		string(m.Status), m.Attempts, m.LastError, m.NextAttemptAt, m.DeliveredAt, m.ID)
	if err != nil {
		return fmt.Errorf("update outbox message: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrOutboxNotFound
	}
	return nil
}

func (s *Store) CountOutbox(ctx context.Context, status models.OutboxStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_messages WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
