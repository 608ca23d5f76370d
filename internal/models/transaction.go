package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s != StatusPending
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusValidated, StatusRejected, StatusFailed:
		return true
	}
	return false
}

type Kind string

const (
	KindCreationReward    Kind = "creation_reward"
	KindEnrollmentPayment Kind = "enrollment_payment"
	KindInstructorShare   Kind = "instructor_share"
	KindCommissionShare   Kind = "commission_share"
)

// SettlementKinds are the kinds that can be opened as pending transactions
// and therefore need a commerce-side activation and compensation.
var SettlementKinds = []Kind{KindCreationReward, KindEnrollmentPayment}

// Target identifies the commerce entity a settlement kind correlates with.
type Target string

const (
	TargetCourse     Target = "course"
	TargetEnrollment Target = "enrollment"
)

// Target maps a settlement kind to the commerce entity it funds. Leg kinds
// never reach the commerce service and return ErrInvalidKind.
func (k Kind) Target() (Target, error) {
	switch k {
	case KindCreationReward:
		return TargetCourse, nil
	case KindEnrollmentPayment:
		return TargetEnrollment, nil
	}
	return "", fmt.Errorf("%w: %q has no commerce target", ErrInvalidKind, k)
}

func (k Kind) Valid() bool {
	switch k {
	case KindCreationReward, KindEnrollmentPayment, KindInstructorShare, KindCommissionShare:
		return true
	}
	return false
}

// Transaction is a single ledger row. Split settlements produce one row per
// leg, linked to the decided row through ParentID.
type Transaction struct {
	ID            string          `json:"id" db:"id"`
	FromAccount   string          `json:"fromAccount" db:"from_account"`
	ToAccount     string          `json:"toAccount" db:"to_account"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Description   string          `json:"description" db:"description"`
	Status        Status          `json:"status" db:"status"`
	Kind          Kind            `json:"kind" db:"kind"`
	CorrelationID string          `json:"correlationId" db:"correlation_id"`
	ParentID      string          `json:"parentId,omitempty" db:"parent_id"`
	FailureReason string          `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
	DecidedAt     *time.Time      `json:"decidedAt,omitempty" db:"decided_at"`
}

// TransactionFilter narrows ListTransactions. Zero fields are ignored.
type TransactionFilter struct {
	Status  Status
	Kind    Kind
	Account string // matches either side
	Limit   int
	Offset  int
}

// MinorUnits is the number of fractional digits every stored amount carries.
const MinorUnits = 2

// ValidAmount reports whether d is positive and fits the ledger's fixed-point
// columns without rounding.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(MinorUnits))
}
