package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/store"
)

const accountNumberAttempts = 5

type OpenAccountRequest struct {
	AccountNumber    string
	OwnerName        string
	Role             models.Role
	SecretCredential string
}

// OpenAccount registers a zero-balance account. An empty AccountNumber gets a
// generated 10-digit number. Learner accounts then receive the welcome grant
// when the organization can fund it.
func (s *Service) OpenAccount(ctx context.Context, req OpenAccountRequest) (*models.Account, error) {
	if !req.Role.Valid() || req.Role == models.RoleOrganization {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidRole, req.Role)
	}

	hash, err := s.hasher.Hash(req.SecretCredential)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	now := s.now()
	account := &models.Account{
		ID:             uuid.NewString(),
		AccountNumber:  req.AccountNumber,
		OwnerName:      req.OwnerName,
		Balance:        decimal.Zero,
		CredentialHash: hash,
		Role:           req.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.AccountNumber != "" {
		if err := s.store.CreateAccount(ctx, account); err != nil {
			return nil, err
		}
	} else if err := s.createWithGeneratedNumber(ctx, account); err != nil {
		return nil, err
	}

	s.audit.LogOperation("", account.AccountNumber, "ACCOUNT_OPENED", string(account.Role))
	s.log.Info("Account opened",
		zap.String("account_number", account.AccountNumber),
		zap.String("role", string(account.Role)))

	if account.Role == models.RoleLearner && s.opts.WelcomeGrant.IsPositive() {
		s.grantWelcome(ctx, account.AccountNumber)
	}

	return s.store.GetAccount(ctx, account.AccountNumber)
}

func (s *Service) createWithGeneratedNumber(ctx context.Context, account *models.Account) error {
	for i := 0; i < accountNumberAttempts; i++ {
		number, err := generateAccountNumber()
		if err != nil {
			return err
		}
		account.AccountNumber = number

		err = s.store.CreateAccount(ctx, account)
		if !errors.Is(err, models.ErrDuplicateAccount) {
			return err
		}
	}
	return fmt.Errorf("no free account number after %d attempts: %w", accountNumberAttempts, models.ErrDuplicateAccount)
}

// grantWelcome moves the welcome grant from the organization as a validated
// row. An organization without funds means no grant, not a failed opening.
func (s *Service) grantWelcome(ctx context.Context, accountNumber string) {
	now := s.now()
	grant := s.opts.WelcomeGrant
	row := &models.Transaction{
		ID:            uuid.NewString(),
		FromAccount:   s.opts.OrganizationAccount,
		ToAccount:     accountNumber,
		Amount:        grant,
		Description:   "Welcome grant",
		Status:        models.StatusValidated,
		Kind:          models.KindCommissionShare,
		CorrelationID: "welcome:" + accountNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
		DecidedAt:     &now,
	}

	err := s.store.Apply(ctx, store.Settlement{
		DecidedAt: now,
		Legs:      []*models.Transaction{row},
		Postings: []store.Posting{
			store.Debit(row.ID, row.FromAccount, grant),
			store.Credit(row.ID, row.ToAccount, grant),
		},
	})
	if err != nil {
		s.log.Warn("Welcome grant skipped",
			zap.String("account_number", accountNumber),
			zap.Error(err))
		return
	}
	s.audit.LogTransfer(row.ID, row.FromAccount, row.ToAccount, grant, string(row.Status))
}

// VerifyCredential checks secret against the stored hash.
func (s *Service) VerifyCredential(ctx context.Context, accountNumber, secret string) error {
	account, err := s.store.GetAccount(ctx, accountNumber)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(secret, account.CredentialHash) {
		return models.ErrInvalidCredential
	}
	return nil
}

func (s *Service) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	return s.store.GetAccount(ctx, accountNumber)
}

func (s *Service) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	account, err := s.store.GetAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// History lists the account's validated rows, newest first. Pending and
// decision-only rows are left out since they never moved money themselves.
func (s *Service) History(ctx context.Context, accountNumber string, limit, offset int) ([]*models.Transaction, error) {
	if _, err := s.store.GetAccount(ctx, accountNumber); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, models.TransactionFilter{
		Status:  models.StatusValidated,
		Account: accountNumber,
		Limit:   limit,
		Offset:  offset,
	})
}

// Bootstrap creates and seeds the organization account. It is the only
// operation that adds money to the system. Running it again returns the
// existing account untouched.
func (s *Service) Bootstrap(ctx context.Context) (*models.Account, error) {
	existing, err := s.store.GetAccount(ctx, s.opts.OrganizationAccount)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, err
	}

	now := s.now()
	org := &models.Account{
		ID:            uuid.NewString(),
		AccountNumber: s.opts.OrganizationAccount,
		OwnerName:     s.opts.OrganizationName,
		Balance:       s.opts.OrganizationSeed,
		Role:          models.RoleOrganization,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateAccount(ctx, org); err != nil {
		if errors.Is(err, models.ErrDuplicateAccount) {
			return s.store.GetAccount(ctx, s.opts.OrganizationAccount)
		}
		return nil, fmt.Errorf("bootstrap organization: %w", err)
	}

	s.audit.LogOperation("", org.AccountNumber, "ORGANIZATION_SEEDED", org.Balance.StringFixed(2))
	s.log.Info("Organization account bootstrapped",
		zap.String("account_number", org.AccountNumber),
		zap.String("seed", org.Balance.StringFixed(2)))
	return s.store.GetAccount(ctx, org.AccountNumber)
}
