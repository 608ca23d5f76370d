package commerce

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) OpenCourseReward(ctx context.Context, instructorAccount string, courseID int64) (string, error) {
	args := m.Called(ctx, instructorAccount, courseID)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) OpenEnrollmentPayment(ctx context.Context, learnerAccount, instructorAccount string, amount decimal.Decimal, enrollmentID int64) (string, error) {
	args := m.Called(ctx, learnerAccount, instructorAccount, amount.StringFixed(2), enrollmentID)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) VerifyCredential(ctx context.Context, accountNumber, secret string) error {
	args := m.Called(ctx, accountNumber, secret)
	return args.Error(0)
}
