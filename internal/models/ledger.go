package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role tags an account with the kind of party that owns it.
type Role string

const (
	RoleLearner      Role = "learner"
	RoleInstructor   Role = "instructor"
	RoleOrganization Role = "organization"
	RoleBank         Role = "bank"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleLearner, RoleInstructor, RoleOrganization, RoleBank:
		return true
	}
	return false
}

const (
	EntryDebit  = "DEBIT"
	EntryCredit = "CREDIT"
)

type Account struct {
	ID             string          `json:"id" db:"id"`
	AccountNumber  string          `json:"accountNumber" db:"account_number"`
	OwnerName      string          `json:"ownerName" db:"owner_name"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	CredentialHash string          `json:"-" db:"credential_hash"`
	Role           Role            `json:"role" db:"role"`
	Version        int             `json:"-" db:"version"` // for optimistic locking
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

type LedgerEntry struct {
	ID            int64           `json:"id" db:"id"`
	TransactionID string          `json:"transactionId" db:"transaction_id"`
	AccountNumber string          `json:"accountNumber" db:"account_number"`
	Amount        decimal.Decimal `json:"amount" db:"amount"` // signed
	EntryType     string          `json:"entryType" db:"entry_type"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter" db:"balance_after"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}
