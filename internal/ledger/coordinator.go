package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/store"
)

type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
)

type OpenRequest struct {
	From          string
	To            string
	Amount        decimal.Decimal
	Kind          models.Kind
	CorrelationID string
	Description   string
}

// OpenPending records a pending settlement after a point-in-time funds
// check. Nothing is held: a later settlement may still consume the funds
// before this one is decided.
func (s *Service) OpenPending(ctx context.Context, req OpenRequest) (*models.Transaction, error) {
	if !models.ValidAmount(req.Amount) {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidAmount, req.Amount)
	}
	if _, err := req.Kind.Target(); err != nil {
		return nil, err
	}

	from, err := s.store.GetAccount(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("payer %s: %w", req.From, err)
	}
	if _, err := s.store.GetAccount(ctx, req.To); err != nil {
		return nil, fmt.Errorf("payee %s: %w", req.To, err)
	}

	if from.Balance.LessThan(req.Amount) {
		if req.Kind == models.KindCreationReward {
			return nil, models.ErrInsufficientOrgFunds
		}
		return nil, models.ErrInsufficientFunds
	}

	now := s.now()
	txn := &models.Transaction{
		ID:            uuid.NewString(),
		FromAccount:   req.From,
		ToAccount:     req.To,
		Amount:        req.Amount,
		Description:   req.Description,
		Status:        models.StatusPending,
		Kind:          req.Kind,
		CorrelationID: req.CorrelationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SettlementsOpened.WithLabelValues(string(txn.Kind)).Inc()
	}
	s.audit.LogTransfer(txn.ID, txn.FromAccount, txn.ToAccount, txn.Amount, string(txn.Status))
	s.publish(ctx, txn)
	return txn, nil
}

// OpenCourseReward opens the organization-funded reward for a new course.
func (s *Service) OpenCourseReward(ctx context.Context, instructorAccount, courseID string) (*models.Transaction, error) {
	return s.OpenPending(ctx, OpenRequest{
		From:          s.opts.OrganizationAccount,
		To:            instructorAccount,
		Amount:        s.opts.CourseReward,
		Kind:          models.KindCreationReward,
		CorrelationID: courseID,
		Description:   "Course creation reward for course " + courseID,
	})
}

func (s *Service) OpenEnrollmentPayment(ctx context.Context, learnerAccount, instructorAccount string, amount decimal.Decimal, enrollmentID string) (*models.Transaction, error) {
	return s.OpenPending(ctx, OpenRequest{
		From:          learnerAccount,
		To:            instructorAccount,
		Amount:        amount,
		Kind:          models.KindEnrollmentPayment,
		CorrelationID: enrollmentID,
		Description:   "Enrollment payment for enrollment " + enrollmentID,
	})
}

func (s *Service) Approve(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return s.Decide(ctx, transactionID, OutcomeApprove)
}

func (s *Service) Reject(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return s.Decide(ctx, transactionID, OutcomeReject)
}

// Decide moves a pending settlement to its terminal status. An approval the
// payer can no longer cover ends as failed: the failed row is returned
// together with ErrInsufficientFunds and commerce is told to compensate.
func (s *Service) Decide(ctx context.Context, transactionID string, outcome Outcome) (*models.Transaction, error) {
	transactionID, err := parseID(transactionID, models.ErrTransactionNotFound)
	if err != nil {
		return nil, err
	}
	txn, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status.Terminal() {
		return nil, models.ErrAlreadyProcessed
	}

	now := s.now()
	var settlement store.Settlement
	switch outcome {
	case OutcomeApprove:
		settlement, err = s.approval(txn, now)
	case OutcomeReject:
		settlement = s.closing(txn, models.StatusRejected, "rejected by reviewer", now)
	default:
		err = fmt.Errorf("unknown outcome %q", outcome)
	}
	if err != nil {
		return nil, err
	}

	applyErr := s.store.Apply(ctx, settlement)
	if applyErr != nil && outcome == OutcomeApprove && errors.Is(applyErr, models.ErrInsufficientFunds) {
		s.audit.LogError(txn.ID, txn.FromAccount, applyErr)
		settlement = s.closing(txn, models.StatusFailed, applyErr.Error(), now)
		if err := s.store.Apply(ctx, settlement); err != nil {
			return nil, err
		}
		failed := s.decided(ctx, txn, settlement)
		return failed, fmt.Errorf("%w: transaction %s failed", models.ErrInsufficientFunds, txn.ID)
	}
	if applyErr != nil {
		return nil, applyErr
	}

	return s.decided(ctx, txn, settlement), nil
}

func (s *Service) approval(txn *models.Transaction, now time.Time) (store.Settlement, error) {
	settlement := store.Settlement{
		TransactionID: txn.ID,
		DecidedAt:     now,
		Outbox:        s.outboxFor(txn, models.ActionActivate, now),
	}

	switch txn.Kind {
	case models.KindCreationReward:
		settlement.Status = models.StatusValidated
		settlement.Postings = []store.Posting{
			store.Debit(txn.ID, txn.FromAccount, txn.Amount),
			store.Credit(txn.ID, txn.ToAccount, txn.Amount),
		}

	case models.KindEnrollmentPayment:
		instructorShare, commission := SplitEnrollment(txn.Amount, s.opts.InstructorShareRate)
		settlement.Status = models.StatusApproved
		settlement.Postings = []store.Posting{store.Debit(txn.ID, txn.FromAccount, txn.Amount)}

		legs := []struct {
			kind   models.Kind
			to     string
			amount decimal.Decimal
		}{
			{models.KindInstructorShare, txn.ToAccount, instructorShare},
			{models.KindCommissionShare, s.opts.OrganizationAccount, commission},
		}
		for _, l := range legs {
			if !l.amount.IsPositive() {
				continue
			}
			leg := &models.Transaction{
				ID:            uuid.NewString(),
				FromAccount:   txn.FromAccount,
				ToAccount:     l.to,
				Amount:        l.amount,
				Description:   string(l.kind) + " of " + txn.ID,
				Status:        models.StatusValidated,
				Kind:          l.kind,
				CorrelationID: txn.CorrelationID,
				ParentID:      txn.ID,
				CreatedAt:     now,
				UpdatedAt:     now,
				DecidedAt:     &now,
			}
			settlement.Legs = append(settlement.Legs, leg)
			settlement.Postings = append(settlement.Postings, store.Credit(leg.ID, leg.ToAccount, leg.Amount))
		}

	default:
		return store.Settlement{}, fmt.Errorf("%w: %q cannot be decided", models.ErrInvalidKind, txn.Kind)
	}
	return settlement, nil
}

func (s *Service) closing(txn *models.Transaction, status models.Status, reason string, now time.Time) store.Settlement {
	return store.Settlement{
		TransactionID: txn.ID,
		Status:        status,
		FailureReason: reason,
		DecidedAt:     now,
		Outbox:        s.outboxFor(txn, models.ActionCompensate, now),
	}
}

func (s *Service) outboxFor(txn *models.Transaction, action models.Action, now time.Time) *models.OutboxMessage {
	return &models.OutboxMessage{
		ID:            uuid.NewString(),
		TransactionID: txn.ID,
		CorrelationID: txn.CorrelationID,
		Kind:          txn.Kind,
		Action:        action,
		Status:        models.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// decided runs the post-commit side effects and returns the stored row.
func (s *Service) decided(ctx context.Context, pending *models.Transaction, settlement store.Settlement) *models.Transaction {
	s.wake()

	txn, err := s.store.GetTransaction(ctx, pending.ID)
	if err != nil {
		s.log.Error("Failed to reload decided transaction", zap.String("transaction_id", pending.ID), zap.Error(err))
		cp := *pending
		cp.Status = settlement.Status
		cp.FailureReason = settlement.FailureReason
		cp.DecidedAt = &settlement.DecidedAt
		txn = &cp
	}

	if s.metrics != nil {
		s.metrics.SettlementsDecided.WithLabelValues(string(txn.Kind), string(txn.Status)).Inc()
	}
	s.audit.LogDecision(txn.ID, string(settlement.Outbox.Action), string(txn.Status))
	for _, leg := range settlement.Legs {
		s.audit.LogTransfer(leg.ID, leg.FromAccount, leg.ToAccount, leg.Amount, string(leg.Status))
	}
	s.publish(ctx, txn)
	return txn
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	id, err := parseID(id, models.ErrTransactionNotFound)
	if err != nil {
		return nil, err
	}
	return s.store.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", filter.Status)
	}
	return s.store.ListTransactions(ctx, filter)
}
