// Package store defines the ledger persistence contract shared by the
// Postgres and in-memory implementations.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edulearn/backend/internal/models"
)

// Posting is one side of a balance mutation. Negative amounts debit the
// account, positive amounts credit it.
type Posting struct {
	TransactionID string
	Account       string
	Amount        decimal.Decimal
}

func Debit(transactionID, account string, amount decimal.Decimal) Posting {
	return Posting{TransactionID: transactionID, Account: account, Amount: amount.Neg()}
}

func Credit(transactionID, account string, amount decimal.Decimal) Posting {
	return Posting{TransactionID: transactionID, Account: account, Amount: amount}
}

// Settlement is applied atomically: either every part takes effect or none.
//
// When TransactionID is set, the referenced row must still be pending; it is
// moved to Status and the apply fails with ErrAlreadyProcessed otherwise.
// Legs are inserted as new rows. Postings must sum to zero and no account
// may end with a negative balance (ErrInsufficientFunds).
type Settlement struct {
	TransactionID string
	Status        models.Status
	FailureReason string
	DecidedAt     time.Time
	Legs          []*models.Transaction
	Postings      []Posting
	Outbox        *models.OutboxMessage
}

type LedgerStore interface {
	// CreateAccount inserts a new account with its opening balance.
	// Returns ErrDuplicateAccount if the account number is taken.
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, accountNumber string) (*models.Account, error)

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
	ListEntries(ctx context.Context, accountNumber string) ([]*models.LedgerEntry, error)

	Apply(ctx context.Context, s Settlement) error

	DueOutbox(ctx context.Context, now time.Time, limit int) ([]*models.OutboxMessage, error)
	GetOutbox(ctx context.Context, id string) (*models.OutboxMessage, error)
	ListOutbox(ctx context.Context, status models.OutboxStatus, limit, offset int) ([]*models.OutboxMessage, error)
	UpdateOutbox(ctx context.Context, msg *models.OutboxMessage) error
	CountOutbox(ctx context.Context, status models.OutboxStatus) (int, error)
}

// SumPostings returns the net effect of a set of postings; balanced
// settlements sum to zero.
func SumPostings(postings []Posting) decimal.Decimal {
	total := decimal.Zero
	for _, p := range postings {
		total = total.Add(p.Amount)
	}
	return total
}
