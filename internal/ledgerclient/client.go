// Package ledgerclient is the commerce service's HTTP client for the ledger.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edulearn/backend/internal/models"
)

// Error is a non-2xx ledger response. It unwraps to the taxonomy error named
// by its code so callers can match with errors.Is.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger returned %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return models.ErrorForCode(e.Code)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   func() (string, error)
}

func New(baseURL string, timeout time.Duration, token func() (string, error)) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

type SettlementResponse struct {
	TransactionID string        `json:"transactionId"`
	Status        models.Status `json:"status"`
}

type courseRewardRequest struct {
	InstructorAccount string `json:"instructorAccount"`
	CourseID          string `json:"courseId"`
}

type enrollmentPaymentRequest struct {
	LearnerAccount    string          `json:"learnerAccount"`
	InstructorAccount string          `json:"instructorAccount"`
	Amount            decimal.Decimal `json:"amount"`
	EnrollmentID      string          `json:"enrollmentId"`
}

type verifyRequest struct {
	AccountNumber    string `json:"accountNumber"`
	SecretCredential string `json:"secretCredential"`
}

// OpenCourseReward asks the ledger for a pending creation reward. The course
// id is the correlation id the ledger calls back with.
func (c *Client) OpenCourseReward(ctx context.Context, instructorAccount string, courseID int64) (string, error) {
	var out SettlementResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/settlements/course-reward", courseRewardRequest{
		InstructorAccount: instructorAccount,
		CourseID:          fmt.Sprint(courseID),
	}, &out)
	return out.TransactionID, err
}

func (c *Client) OpenEnrollmentPayment(ctx context.Context, learnerAccount, instructorAccount string, amount decimal.Decimal, enrollmentID int64) (string, error) {
	var out SettlementResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/settlements/enrollment-payment", enrollmentPaymentRequest{
		LearnerAccount:    learnerAccount,
		InstructorAccount: instructorAccount,
		Amount:            amount,
		EnrollmentID:      fmt.Sprint(enrollmentID),
	}, &out)
	return out.TransactionID, err
}

func (c *Client) VerifyCredential(ctx context.Context, accountNumber, secret string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/accounts/verify", verifyRequest{
		AccountNumber:    accountNumber,
		SecretCredential: secret,
	}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e models.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(raw, &e); err != nil || e.Error == "" {
			e.Error = string(raw)
		}
		return &Error{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
