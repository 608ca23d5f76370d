// Package memory is an in-process LedgerStore. A single mutex serializes
// every mutation, which gives Apply the same all-or-nothing semantics as the
// Postgres transaction.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*models.Account
	transactions map[string]*models.Transaction
	entries      []*models.LedgerEntry
	outbox       map[string]*models.OutboxMessage
	seq          int64
}

var _ store.LedgerStore = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:     make(map[string]*models.Account),
		transactions: make(map[string]*models.Transaction),
		outbox:       make(map[string]*models.OutboxMessage),
	}
}

func (s *Store) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.AccountNumber]; ok {
		return models.ErrDuplicateAccount
	}
	if account.Version == 0 {
		account.Version = 1
	}
	cp := *account
	s.accounts[account.AccountNumber] = &cp
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountNumber string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountNumber]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// TotalBalance sums every account balance.
func (s *Store) TotalBalance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, a := range s.accounts {
		total = total.Add(a.Balance)
	}
	return total
}

func (s *Store) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[txn.ID]; ok {
		return fmt.Errorf("transaction %s already exists", txn.ID)
	}
	cp := *txn
	s.transactions[txn.ID] = &cp
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTransactions(_ context.Context, f models.TransactionFilter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Transaction, 0)
	for _, t := range s.transactions {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.Account != "" && t.FromAccount != f.Account && t.ToAccount != f.Account {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) ListEntries(_ context.Context, accountNumber string) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.LedgerEntry, 0)
	for _, e := range s.entries {
		if e.AccountNumber == accountNumber {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) Apply(_ context.Context, st store.Settlement) error {
	if !store.SumPostings(st.Postings).IsZero() {
		return fmt.Errorf("unbalanced settlement: postings sum to %s", store.SumPostings(st.Postings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var target *models.Transaction
	if st.TransactionID != "" {
		t, ok := s.transactions[st.TransactionID]
		if !ok {
			return models.ErrTransactionNotFound
		}
		if t.Status != models.StatusPending {
			return models.ErrAlreadyProcessed
		}
		target = t
	}

	// stage balances first so a failing posting leaves nothing behind
	balances := make(map[string]decimal.Decimal)
	staged := make([]*models.LedgerEntry, 0, len(st.Postings))
	for _, p := range st.Postings {
		a, ok := s.accounts[p.Account]
		if !ok {
			return fmt.Errorf("%w: %s", models.ErrAccountNotFound, p.Account)
		}
		bal, ok := balances[p.Account]
		if !ok {
			bal = a.Balance
		}
		bal = bal.Add(p.Amount)
		if bal.IsNegative() {
			return fmt.Errorf("%w: account %s", models.ErrInsufficientFunds, p.Account)
		}
		balances[p.Account] = bal

		entryType := models.EntryCredit
		if p.Amount.IsNegative() {
			entryType = models.EntryDebit
		}
		staged = append(staged, &models.LedgerEntry{
			TransactionID: p.TransactionID,
			AccountNumber: p.Account,
			Amount:        p.Amount,
			EntryType:     entryType,
			BalanceAfter:  bal,
		})
	}

	now := st.DecidedAt
	if now.IsZero() {
		now = time.Now()
	}

	if target != nil {
		target.Status = st.Status
		target.FailureReason = st.FailureReason
		target.UpdatedAt = now
		decided := now
		target.DecidedAt = &decided
	}
	for _, leg := range st.Legs {
		cp := *leg
		s.transactions[leg.ID] = &cp
	}
	for number, bal := range balances {
		a := s.accounts[number]
		a.Balance = bal
		a.Version++
		a.UpdatedAt = now
	}
	for _, e := range staged {
		s.seq++
		e.ID = s.seq
		e.CreatedAt = now
		s.entries = append(s.entries, e)
	}
	if st.Outbox != nil {
		cp := *st.Outbox
		s.outbox[cp.ID] = &cp
	}
	return nil
}

func (s *Store) DueOutbox(_ context.Context, now time.Time, limit int) ([]*models.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.OutboxMessage, 0)
	for _, m := range s.outbox {
		if m.Status == models.OutboxPending && !m.NextAttemptAt.After(now) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortOutbox(out)
	return page(out, limit, 0), nil
}

func (s *Store) GetOutbox(_ context.Context, id string) (*models.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.outbox[id]
	if !ok {
		return nil, models.ErrOutboxNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListOutbox(_ context.Context, status models.OutboxStatus, limit, offset int) ([]*models.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.OutboxMessage, 0)
	for _, m := range s.outbox {
		if status == "" || m.Status == status {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortOutbox(out)
	return page(out, limit, offset), nil
}

func (s *Store) UpdateOutbox(_ context.Context, msg *models.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[msg.ID]; !ok {
		return models.ErrOutboxNotFound
	}
	cp := *msg
	s.outbox[msg.ID] = &cp
	return nil
}

func (s *Store) CountOutbox(_ context.Context, status models.OutboxStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.outbox {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

func sortOutbox(msgs []*models.OutboxMessage) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
