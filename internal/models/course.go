package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CourseStatus string

const (
	CourseStatusPending  CourseStatus = "pending"
	CourseStatusActive   CourseStatus = "active"
	CourseStatusRejected CourseStatus = "rejected"
)

func (s CourseStatus) Valid() bool {
	switch s {
	case CourseStatusPending, CourseStatusActive, CourseStatusRejected:
		return true
	}
	return false
}

// Course is owned by the commerce service. It only becomes visible to
// learners once the ledger has funded its creation reward.
type Course struct {
	ID                       int64           `json:"id" db:"id"`
	InstructorID             string          `json:"instructorId" db:"instructor_id"`
	InstructorAccount        string          `json:"instructorAccount" db:"instructor_account"`
	Title                    string          `json:"title" db:"title"`
	Description              string          `json:"description" db:"description"`
	Price                    decimal.Decimal `json:"price" db:"price"`
	Duration                 string          `json:"duration" db:"duration"`
	Level                    string          `json:"level" db:"level"`
	Status                   CourseStatus    `json:"status" db:"status"`
	FundingValidated         bool            `json:"fundingValidated" db:"funding_validated"`
	CorrelationTransactionID string          `json:"correlationTransactionId,omitempty" db:"correlation_transaction_id"`
	EnrolledCount            int             `json:"enrolledCount" db:"enrolled_count"`
	CreatedAt                time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt                time.Time       `json:"updatedAt" db:"updated_at"`
}

// Active reports whether both activation flags have been set.
func (c *Course) Active() bool {
	return c.Status == CourseStatusActive && c.FundingValidated
}

type Enrollment struct {
	ID                       int64     `json:"id" db:"id"`
	LearnerID                string    `json:"learnerId" db:"learner_id"`
	LearnerAccount           string    `json:"learnerAccount" db:"learner_account"`
	CourseID                 int64     `json:"courseId" db:"course_id"`
	PaymentValidated         bool      `json:"paymentValidated" db:"payment_validated"`
	CorrelationTransactionID string    `json:"correlationTransactionId,omitempty" db:"correlation_transaction_id"`
	Deadline                 time.Time `json:"deadline" db:"deadline"`
	CreatedAt                time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt                time.Time `json:"updatedAt" db:"updated_at"`

	// Course is only loaded by ListEnrollments.
	Course *Course `json:"course,omitempty" db:"-"`
}

// CourseFilter narrows ListCourses. Zero fields are ignored.
type CourseFilter struct {
	Status       CourseStatus
	InstructorID string
	Limit        int
	Offset       int
}
