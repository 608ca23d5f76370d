package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/config"
	"github.com/edulearn/backend/internal/metrics"
	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/store"
)

type Notifier interface {
	Notify(ctx context.Context, msg *models.OutboxMessage) error
}

// Dispatcher drains the outbox with at-least-once delivery. Failed messages
// are retried with exponential backoff until MaxAttempts, then parked as
// dead for the operator queue.
type Dispatcher struct {
	store    store.LedgerStore
	notifier Notifier
	lease    Lease
	cfg      config.NotifierConfig
	log      *zap.Logger
	metrics  *metrics.Metrics
	wake     chan struct{}
	now      func() time.Time
}

// NewDispatcher builds a dispatcher. lease may be nil for single-instance
// deployments without Redis.
func NewDispatcher(st store.LedgerStore, n Notifier, lease Lease, cfg config.NotifierConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    st,
		notifier: n,
		lease:    lease,
		cfg:      cfg,
		log:      log.Named("dispatcher"),
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

func (d *Dispatcher) SetMetrics(m *metrics.Metrics) { d.metrics = m }

// Wake triggers a drain without waiting for the next poll. It never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.log.Info("Outbox dispatcher started", zap.Duration("poll_interval", d.cfg.PollInterval))
	for {
		if _, err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("Outbox drain failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			if d.lease != nil {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				if err := d.lease.Release(releaseCtx); err != nil {
					d.log.Warn("Failed to release dispatcher lease", zap.Error(err))
				}
				cancel()
			}
			d.log.Info("Outbox dispatcher stopped")
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DrainOnce delivers every due message once and returns how many were
// attempted. It stops early if the lease is lost.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	if d.lease != nil {
		held, err := d.lease.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		if !held {
			return 0, nil
		}
	}

	due, err := d.store.DueOutbox(ctx, d.now(), d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i, msg := range due {
		if ctx.Err() != nil {
			break
		}
		// Renewed per message: a whole batch may outlast the lease TTL.
		if i > 0 && d.lease != nil {
			held, err := d.lease.Acquire(ctx)
			if err != nil {
				return attempted, err
			}
			if !held {
				d.log.Warn("Dispatcher lease lost mid-batch", zap.Int("remaining", len(due)-i))
				break
			}
		}
		if err := d.deliver(ctx, msg); err != nil {
			return attempted, err
		}
		attempted++
	}

	d.refreshBacklog(ctx)
	return attempted, nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg *models.OutboxMessage) error {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	err := d.notifier.Notify(callCtx, msg)
	cancel()

	now := d.now()
	msg.Attempts++
	logger := d.log.With(
		zap.String("outbox_id", msg.ID),
		zap.String("transaction_id", msg.TransactionID),
		zap.String("correlation_id", msg.CorrelationID),
		zap.String("action", string(msg.Action)),
		zap.Int("attempts", msg.Attempts),
	)

	switch {
	case err == nil:
		msg.Status = models.OutboxDelivered
		msg.LastError = ""
		msg.DeliveredAt = &now
		d.count(msg, "delivered")
		logger.Info("Commerce notified")

	case errors.Is(err, models.ErrInvalidKind) || msg.Attempts >= d.cfg.MaxAttempts:
		msg.Status = models.OutboxDead
		msg.LastError = err.Error()
		d.count(msg, "dead")
		logger.Error("Notification moved to operator queue", zap.Error(err))

	default:
		msg.LastError = err.Error()
		msg.NextAttemptAt = now.Add(d.backoff(msg.Attempts))
		d.count(msg, "failed")
		logger.Warn("Notification failed, will retry", zap.Time("next_attempt_at", msg.NextAttemptAt), zap.Error(err))
	}

	return d.store.UpdateOutbox(ctx, msg)
}

// backoff doubles BaseBackoff per attempt, capped at MaxBackoff. The delay
// is derived from the stored attempt count, so a fresh ExponentialBackOff is
// stepped forward on every call.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval: d.cfg.BaseBackoff,
		Multiplier:      2,
		MaxInterval:     d.cfg.MaxBackoff,
	}
	delay := b.NextBackOff()
	for i := 1; i < attempts && delay < d.cfg.MaxBackoff; i++ {
		delay = b.NextBackOff()
	}
	return min(delay, d.cfg.MaxBackoff)
}

func (d *Dispatcher) count(msg *models.OutboxMessage, result string) {
	if d.metrics != nil {
		d.metrics.Notifications.WithLabelValues(string(msg.Action), result).Inc()
	}
}

func (d *Dispatcher) refreshBacklog(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	for _, status := range []models.OutboxStatus{models.OutboxPending, models.OutboxDead} {
		n, err := d.store.CountOutbox(ctx, status)
		if err != nil {
			d.log.Warn("Failed to count outbox", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		d.metrics.OutboxBacklog.WithLabelValues(string(status)).Set(float64(n))
	}
}
