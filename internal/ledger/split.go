package ledger

import "github.com/shopspring/decimal"

// SplitEnrollment divides an enrollment payment between the instructor and
// the organization. The instructor share is rounded to cents and the
// commission takes the remainder, so the two always sum to amount.
func SplitEnrollment(amount, instructorRate decimal.Decimal) (instructorShare, commission decimal.Decimal) {
	instructorShare = amount.Mul(instructorRate).Round(2)
	commission = amount.Sub(instructorShare)
	return instructorShare, commission
}
