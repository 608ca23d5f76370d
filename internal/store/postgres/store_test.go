package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/store"
)

// decimalArg matches a decimal parameter regardless of its textual scale.
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return got.Equal(decimal.RequireFromString(string(d)))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

var lockColumns = []string{"id", "account_number", "balance", "version"}

func TestStore_CreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts account", func(t *testing.T) {
		s, mock := newMock(t)
		a := &models.Account{ID: "a1", AccountNumber: "1234567890", OwnerName: "Ada", Role: models.RoleLearner, Balance: decimal.Zero}

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("a1", "1234567890", "Ada", decimalArg("0"), "", "learner", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, s.CreateAccount(ctx, a))
		assert.Equal(t, 1, a.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate account number", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err := s.CreateAccount(ctx, &models.Account{ID: "a2", AccountNumber: "1234567890"})
		assert.ErrorIs(t, err, models.ErrDuplicateAccount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_GetAccount(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "account_number", "owner_name", "balance", "credential_hash", "role", "version", "created_at", "updated_at"}

	t.Run("found", func(t *testing.T) {
		s, mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_number = \\$1").
			WithArgs("1234567890").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("a1", "1234567890", "Ada", "15000.00", "salt$hash", "learner", 3, now, now))

		a, err := s.GetAccount(ctx, "1234567890")
		require.NoError(t, err)
		assert.True(t, a.Balance.Equal(dec("15000")))
		assert.Equal(t, models.RoleLearner, a.Role)
		assert.Equal(t, 3, a.Version)
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM accounts").
			WithArgs("0000000000").
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := s.GetAccount(ctx, "0000000000")
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})
}

func TestStore_GetTransaction(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "from_account", "to_account", "amount", "description", "status", "kind",
		"correlation_id", "parent_id", "failure_reason", "created_at", "updated_at", "decided_at"}

	t.Run("pending row with no parent", func(t *testing.T) {
		s, mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1").
			WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("tx1", "1111111111", "2222222222", "5000.00", "", "pending", "enrollment_payment",
					"7", nil, "", now, now, nil))

		txn, err := s.GetTransaction(ctx, "tx1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, txn.Status)
		assert.Equal(t, models.KindEnrollmentPayment, txn.Kind)
		assert.Empty(t, txn.ParentID)
		assert.Nil(t, txn.DecidedAt)
	})

	t.Run("unknown id", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := s.GetTransaction(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrTransactionNotFound)
	})
}

func TestStore_ListTransactionsBuildsFilter(t *testing.T) {
	s, mock := newMock(t)
	columns := []string{"id", "from_account", "to_account", "amount", "description", "status", "kind",
		"correlation_id", "parent_id", "failure_reason", "created_at", "updated_at", "decided_at"}

	mock.ExpectQuery("WHERE status = \\$1 AND \\(from_account = \\$2 OR to_account = \\$2\\) ORDER BY created_at DESC, id LIMIT \\$3").
		WithArgs("validated", "1111111111", 10).
		WillReturnRows(sqlmock.NewRows(columns))

	out, err := s.ListTransactions(context.Background(), models.TransactionFilter{
		Status:  models.StatusValidated,
		Account: "1111111111",
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func enrollmentSettlement(now time.Time) store.Settlement {
	legs := []*models.Transaction{
		{ID: "leg1", FromAccount: "1111111111", ToAccount: "2222222222", Amount: dec("4000"),
			Status: models.StatusValidated, Kind: models.KindInstructorShare, CorrelationID: "7", ParentID: "tx1", CreatedAt: now, UpdatedAt: now},
		{ID: "leg2", FromAccount: "1111111111", ToAccount: "0000000001", Amount: dec("1000"),
			Status: models.StatusValidated, Kind: models.KindCommissionShare, CorrelationID: "7", ParentID: "tx1", CreatedAt: now, UpdatedAt: now},
	}
	return store.Settlement{
		TransactionID: "tx1",
		Status:        models.StatusApproved,
		DecidedAt:     now,
		Legs:          legs,
		Postings: []store.Posting{
			store.Debit("tx1", "1111111111", dec("5000")),
			store.Credit("leg1", "2222222222", dec("4000")),
			store.Credit("leg2", "0000000001", dec("1000")),
		},
		Outbox: &models.OutboxMessage{
			ID: "ob1", TransactionID: "tx1", CorrelationID: "7", Kind: models.KindEnrollmentPayment,
			Action: models.ActionActivate, Status: models.OutboxPending, NextAttemptAt: now, CreatedAt: now,
		},
	}
}

func TestStore_Apply(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("approved enrollment moves money and queues activation", func(t *testing.T) {
		s, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WithArgs("approved", "", sqlmock.AnyArg(), "tx1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("leg1", "1111111111", "2222222222", decimalArg("4000"), "", "validated", "instructor_share",
				"7", "tx1", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("leg2", "1111111111", "0000000001", decimalArg("1000"), "", "validated", "commission_share",
				"7", "tx1", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// sorted lock order
		mock.ExpectQuery("FOR UPDATE").WithArgs("0000000001").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("org", "0000000001", "100000.00", 4))
		mock.ExpectQuery("FOR UPDATE").WithArgs("1111111111").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("learner", "1111111111", "15000.00", 2))
		mock.ExpectQuery("FOR UPDATE").WithArgs("2222222222").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("instructor", "2222222222", "0.00", 1))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("tx1", "1111111111", decimalArg("-5000"), "DEBIT", decimalArg("10000"), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("leg1", "2222222222", decimalArg("4000"), "CREDIT", decimalArg("4000"), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("leg2", "0000000001", decimalArg("1000"), "CREDIT", decimalArg("101000"), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(3, 1))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimalArg("101000"), sqlmock.AnyArg(), "org", 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimalArg("10000"), sqlmock.AnyArg(), "learner", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimalArg("4000"), sqlmock.AnyArg(), "instructor", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("INSERT INTO outbox_messages").
			WithArgs("ob1", "tx1", "7", "enrollment_payment", "activate", "pending", 0, "",
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.Apply(ctx, enrollmentSettlement(now)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already decided row is rejected", func(t *testing.T) {
		s, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WithArgs("approved", "", sqlmock.AnyArg(), "tx1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		err := s.Apply(ctx, enrollmentSettlement(now))
		assert.ErrorIs(t, err, models.ErrAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown row", func(t *testing.T) {
		s, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		err := s.Apply(ctx, enrollmentSettlement(now))
		assert.ErrorIs(t, err, models.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds rolls back everything", func(t *testing.T) {
		s, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FOR UPDATE").WithArgs("0000000001").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("org", "0000000001", "100000.00", 4))
		mock.ExpectQuery("FOR UPDATE").WithArgs("1111111111").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("learner", "1111111111", "100.00", 2))
		mock.ExpectQuery("FOR UPDATE").WithArgs("2222222222").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("instructor", "2222222222", "0.00", 1))
		mock.ExpectRollback()

		err := s.Apply(ctx, enrollmentSettlement(now))
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version fails optimistic lock", func(t *testing.T) {
		s, mock := newMock(t)
		st := store.Settlement{
			Postings: []store.Posting{
				store.Debit("w1", "0000000001", dec("10")),
				store.Credit("w1", "1111111111", dec("10")),
			},
		}

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("0000000001").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("org", "0000000001", "100.00", 4))
		mock.ExpectQuery("FOR UPDATE").WithArgs("1111111111").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("learner", "1111111111", "0.00", 1))
		mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimalArg("90"), sqlmock.AnyArg(), "org", 4).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := s.Apply(ctx, st)
		assert.ErrorIs(t, err, models.ErrOptimisticLock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unbalanced postings never reach the database", func(t *testing.T) {
		s, mock := newMock(t)
		err := s.Apply(ctx, store.Settlement{Postings: []store.Posting{store.Credit("x", "1111111111", dec("1"))}})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Outbox(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "transaction_id", "correlation_id", "kind", "action", "status", "attempts",
		"last_error", "next_attempt_at", "created_at", "delivered_at"}

	t.Run("due messages", func(t *testing.T) {
		s, mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery("FROM outbox_messages WHERE status = 'pending' AND next_attempt_at <= \\$1").
			WithArgs(now, 50).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("ob1", "tx1", "12", "creation_reward", "activate", "pending", 2, "timeout", now, now, nil))

		msgs, err := s.DueOutbox(ctx, now, 50)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, models.ActionActivate, msgs[0].Action)
		assert.Equal(t, models.KindCreationReward, msgs[0].Kind)
		assert.Equal(t, 2, msgs[0].Attempts)
	})

	t.Run("update missing message", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("UPDATE outbox_messages").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.UpdateOutbox(ctx, &models.OutboxMessage{ID: "nope", Status: models.OutboxDead})
		assert.ErrorIs(t, err, models.ErrOutboxNotFound)
	})

	t.Run("count by status", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectQuery("SELECT COUNT").WithArgs("dead").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		n, err := s.CountOutbox(ctx, models.OutboxDead)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}
