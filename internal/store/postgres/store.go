package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

var _ store.LedgerStore = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	if a.Version == 0 {
		a.Version = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, account_number, owner_name, balance, credential_hash, role, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.AccountNumber, a.OwnerName, a.Balance, a.CredentialHash, string(a.Role), a.Version, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrDuplicateAccount
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	var a models.Account
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_number, owner_name, balance, credential_hash, role, version, created_at, updated_at
		FROM accounts
		WHERE account_number = $1`, accountNumber).
		Scan(&a.ID, &a.AccountNumber, &a.OwnerName, &a.Balance, &a.CredentialHash, &role, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	a.Role = models.Role(role)
	return &a, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return insertTransaction(ctx, s.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, t *models.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (id, from_account, to_account, amount, description, status, kind, correlation_id, parent_id, failure_reason, created_at, updated_at, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.FromAccount, t.ToAccount, t.Amount, t.Description, string(t.Status), string(t.Kind),
		t.CorrelationID, nullString(t.ParentID), t.FailureReason, t.CreatedAt, t.UpdatedAt, t.DecidedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, from_account, to_account, amount, description, status, kind, correlation_id, parent_id, failure_reason, created_at, updated_at, decided_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var t models.Transaction
	var status, kind string
	var parent sql.NullString
	if err := row.Scan(&t.ID, &t.FromAccount, &t.ToAccount, &t.Amount, &t.Description, &status, &kind,
		&t.CorrelationID, &parent, &t.FailureReason, &t.CreatedAt, &t.UpdatedAt, &t.DecidedAt); err != nil {
		return nil, err
	}
	t.Status = models.Status(status)
	t.Kind = models.Kind(kind)
	t.ParentID = parent.String
	return &t, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select transaction: %w", err)
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]*models.Transaction, error) {
	var conditions []string
	var args []any

	if f.Status != "" {
		args = append(args, string(f.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.Account != "" {
		args = append(args, f.Account)
		conditions = append(conditions, fmt.Sprintf("(from_account = $%d OR to_account = $%d)", len(args), len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListEntries(ctx context.Context, accountNumber string) ([]*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, account_number, amount, entry_type, balance_after, created_at
		FROM ledger_entries
		WHERE account_number = $1
		ORDER BY id`, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountNumber, &e.Amount, &e.EntryType, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Apply runs the whole settlement in one database transaction. The status
// change is a compare-and-swap on status = 'pending'; accounts are locked in
// sorted order to prevent deadlocks and written with a version check.
func (s *Store) Apply(ctx context.Context, st store.Settlement) error {
	if !store.SumPostings(st.Postings).IsZero() {
		return fmt.Errorf("unbalanced settlement: postings sum to %s", store.SumPostings(st.Postings))
	}

	now := st.DecidedAt
	if now.IsZero() {
		now = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if st.TransactionID != "" {
		if err := s.transition(ctx, tx, st, now); err != nil {
			return err
		}
	}

	for _, leg := range st.Legs {
		if err := insertTransaction(ctx, tx, leg); err != nil {
			return err
		}
	}

	if len(st.Postings) > 0 {
		if err := s.post(ctx, tx, st.Postings, now); err != nil {
			return err
		}
	}

	if st.Outbox != nil {
		if err := insertOutbox(ctx, tx, st.Outbox); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) transition(ctx context.Context, tx *sql.Tx, st store.Settlement, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, failure_reason = $2, decided_at = $3, updated_at = $3
		WHERE id = $4 AND status = 'pending'`,
		string(st.Status), st.FailureReason, now, st.TransactionID)
	if err != nil {
		return fmt.Errorf("transition transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, st.TransactionID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return models.ErrTransactionNotFound
	}
	return models.ErrAlreadyProcessed
}

func (s *Store) post(ctx context.Context, tx *sql.Tx, postings []store.Posting, now time.Time) error {
	numbers := make([]string, 0, len(postings))
	seen := make(map[string]bool)
	for _, p := range postings {
		if !seen[p.Account] {
			seen[p.Account] = true
			numbers = append(numbers, p.Account)
		}
	}
	// Lock accounts in consistent order to prevent deadlocks
	sort.Strings(numbers)

	locked := make(map[string]*models.Account, len(numbers))
	for _, number := range numbers {
		a, err := s.lockAccount(ctx, tx, number)
		if err != nil {
			return err
		}
		locked[number] = a
	}

	balances := make(map[string]decimal.Decimal, len(locked))
	for number, a := range locked {
		balances[number] = a.Balance
	}

	for _, p := range postings {
		bal := balances[p.Account].Add(p.Amount)
		if bal.IsNegative() {
			return fmt.Errorf("%w: account %s", models.ErrInsufficientFunds, p.Account)
		}
		balances[p.Account] = bal

		entryType := models.EntryCredit
		if p.Amount.IsNegative() {
			entryType = models.EntryDebit
		}
		if err := s.createLedgerEntry(ctx, tx, p, entryType, bal, now); err != nil {
			return err
		}
	}

	for _, number := range numbers {
		a := locked[number]
		if err := s.updateAccountBalance(ctx, tx, a.ID, balances[number], a.Version, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) lockAccount(ctx context.Context, tx *sql.Tx, accountNumber string) (*models.Account, error) {
	var a models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, account_number, balance, version
		FROM accounts
		WHERE account_number = $1
		FOR UPDATE`, accountNumber).Scan(&a.ID, &a.AccountNumber, &a.Balance, &a.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return &a, nil
}

func (s *Store) createLedgerEntry(ctx context.Context, tx *sql.Tx, p store.Posting, entryType string, balance decimal.Decimal, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (transaction_id, account_number, amount, entry_type, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.TransactionID, p.Account, p.Amount, entryType, balance, now)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *Store) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID string, newBalance decimal.Decimal, version int, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, now, accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w for account %s", models.ErrOptimisticLock, accountID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
