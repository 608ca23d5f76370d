package models

import "errors"

// Ledger errors
var (
	ErrDuplicateAccount     = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidCredential    = errors.New("invalid secret credential")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientOrgFunds = errors.New("insufficient organization funds")
	ErrAlreadyProcessed     = errors.New("transaction already processed")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidKind          = errors.New("invalid settlement kind")
	ErrInvalidRole          = errors.New("invalid account role")
	ErrNotificationFailure  = errors.New("commerce notification failed")
	ErrOutboxNotFound       = errors.New("outbox message not found")
	ErrOptimisticLock       = errors.New("optimistic lock failed")
)

// Commerce errors
var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseNotActive    = errors.New("course is not active")
	ErrCourseActive       = errors.New("course is already active")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrEnrollmentPaid     = errors.New("enrollment payment already validated")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this course")
)

// ErrorCode returns the wire code for a taxonomy error, or "" if err is not one.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// ErrorForCode is the inverse of ErrorCode, used by clients decoding a
// response from the other service.
func ErrorForCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInsufficientOrgFunds, "InsufficientOrgFunds"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrDuplicateAccount, "DuplicateAccount"},
	{ErrAccountNotFound, "AccountNotFound"},
	{ErrInvalidCredential, "InvalidCredential"},
	{ErrAlreadyProcessed, "AlreadyProcessed"},
	{ErrTransactionNotFound, "TransactionNotFound"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidKind, "InvalidKind"},
	{ErrInvalidRole, "InvalidRole"},
	{ErrNotificationFailure, "NotificationFailure"},
	{ErrOutboxNotFound, "OutboxNotFound"},
	{ErrOptimisticLock, "OptimisticLock"},
	{ErrCourseNotFound, "CourseNotFound"},
	{ErrCourseNotActive, "CourseNotActive"},
	{ErrCourseActive, "CourseActive"},
	{ErrEnrollmentNotFound, "EnrollmentNotFound"},
	{ErrEnrollmentPaid, "EnrollmentPaid"},
	{ErrAlreadyEnrolled, "AlreadyEnrolled"},
}
