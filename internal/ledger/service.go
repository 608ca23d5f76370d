// Package ledger owns accounts and money. It opens pending settlements,
// applies approved ones as balanced postings, and queues the commerce
// notification for every decision in the same storage transaction.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/audit"
	"github.com/edulearn/backend/internal/config"
	"github.com/edulearn/backend/internal/metrics"
	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/store"
)

// Waker is notified after a decision commits so queued notifications go out
// without waiting for the next poll.
type Waker interface {
	Wake()
}

type Options struct {
	OrganizationAccount string
	OrganizationName    string
	OrganizationSeed    decimal.Decimal
	WelcomeGrant        decimal.Decimal
	CourseReward        decimal.Decimal
	InstructorShareRate decimal.Decimal
}

func OptionsFromConfig(cfg *config.LedgerConfig) Options {
	return Options{
		OrganizationAccount: cfg.OrganizationAccount,
		OrganizationName:    cfg.OrganizationName,
		OrganizationSeed:    cfg.OrganizationSeed,
		WelcomeGrant:        cfg.WelcomeGrant,
		CourseReward:        cfg.CourseReward,
		InstructorShareRate: cfg.InstructorShareRate,
	}
}

type Service struct {
	store   store.LedgerStore
	hasher  *Hasher
	opts    Options
	log     *zap.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics
	events  EventPublisher
	waker   Waker
	now     func() time.Time
}

func NewService(st store.LedgerStore, hasher *Hasher, opts Options, log *zap.Logger) *Service {
	return &Service{
		store:  st,
		hasher: hasher,
		opts:   opts,
		log:    log,
		audit:  audit.NewLogger(log),
		now:    time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

func (s *Service) SetWaker(w Waker) { s.waker = w }

func (s *Service) Options() Options { return s.opts }

func (s *Service) publish(ctx context.Context, t *models.Transaction) {
	if s.events != nil {
		s.events.Publish(ctx, eventFor(t, s.now()))
	}
}

func (s *Service) wake() {
	if s.waker != nil {
		s.waker.Wake()
	}
}

// parseID returns the canonical form of a caller-supplied row id. A value
// that is not a UUID cannot name any row and is reported as notFound.
func parseID(id string, notFound error) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", notFound, id)
	}
	return u.String(), nil
}
