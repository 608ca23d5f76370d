package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/ledger"
	"github.com/edulearn/backend/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type LedgerHandler struct {
	service   *ledger.Service
	validator *ValidationHelper
	log       *zap.Logger
}

func NewLedgerHandler(service *ledger.Service, log *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		validator: NewValidationHelper(),
		log:       log,
	}
}

type OpenAccountRequest struct {
	AccountNumber    string `json:"accountNumber,omitempty" validate:"omitempty,numeric,min=6,max=32"`
	OwnerName        string `json:"ownerName" validate:"required,max=255"`
	Role             string `json:"role" validate:"required"`
	SecretCredential string `json:"secretCredential" validate:"required,min=4,max=128"`
}

type VerifyRequest struct {
	AccountNumber    string `json:"accountNumber" validate:"required"`
	SecretCredential string `json:"secretCredential" validate:"required"`
}

type CourseRewardRequest struct {
	InstructorAccount string `json:"instructorAccount" validate:"required"`
	CourseID          string `json:"courseId" validate:"required"`
}

type EnrollmentPaymentRequest struct {
	LearnerAccount    string          `json:"learnerAccount" validate:"required"`
	InstructorAccount string          `json:"instructorAccount" validate:"required,nefield=LearnerAccount"`
	Amount            decimal.Decimal `json:"amount"`
	EnrollmentID      string          `json:"enrollmentId" validate:"required"`
}

type SettlementResponse struct {
	TransactionID string        `json:"transactionId"`
	Status        models.Status `json:"status"`
}

type BalanceResponse struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

// DecisionFailure is returned when an approval could not be honoured and the
// settlement was closed as failed instead.
type DecisionFailure struct {
	models.ErrorResponse
	Transaction *models.Transaction `json:"transaction"`
}

// OpenAccount creates a ledger account
// @Summary Open account
// @Description Create an account. Learner accounts receive the welcome grant.
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body OpenAccountRequest true "Account request"
// @Success 201 {object} models.Account
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /accounts [post]
func (h *LedgerHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}

	account, err := h.service.OpenAccount(r.Context(), ledger.OpenAccountRequest{
		AccountNumber:    req.AccountNumber,
		OwnerName:        req.OwnerName,
		Role:             models.Role(req.Role),
		SecretCredential: req.SecretCredential,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusCreated, account)
}

// VerifyCredential checks an account's secret credential
// @Summary Verify credential
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body VerifyRequest true "Credential"
// @Success 200 {object} object{verified=bool}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/verify [post]
func (h *LedgerHandler) VerifyCredential(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}

	if err := h.service.VerifyCredential(r.Context(), req.AccountNumber, req.SecretCredential); err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// GetAccount
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param accountNumber path string true "Account number"
// @Success 200 {object} models.Account
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{accountNumber} [get]
func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, account)
}

// GetBalance
// @Summary Get balance
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param accountNumber path string true "Account number"
// @Success 200 {object} BalanceResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{accountNumber}/balance [get]
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")
	balance, err := h.service.GetBalance(r.Context(), accountNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, BalanceResponse{AccountNumber: accountNumber, Balance: balance})
}

// History lists the validated transactions touching an account
// @Summary Transaction history
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param accountNumber path string true "Account number"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Transaction
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{accountNumber}/transactions [get]
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}

	txns, err := h.service.History(r.Context(), chi.URLParam(r, "accountNumber"), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(txns))
}

// OpenCourseReward opens the pending organization reward for a new course
// @Summary Open course reward
// @Tags Settlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CourseRewardRequest true "Course reward"
// @Success 201 {object} SettlementResponse
// @Failure 402 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /settlements/course-reward [post]
func (h *LedgerHandler) OpenCourseReward(w http.ResponseWriter, r *http.Request) {
	var req CourseRewardRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}

	txn, err := h.service.OpenCourseReward(r.Context(), req.InstructorAccount, req.CourseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusCreated, SettlementResponse{TransactionID: txn.ID, Status: txn.Status})
}

// OpenEnrollmentPayment opens a pending learner payment
// @Summary Open enrollment payment
// @Tags Settlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EnrollmentPaymentRequest true "Enrollment payment"
// @Success 201 {object} SettlementResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 402 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /settlements/enrollment-payment [post]
func (h *LedgerHandler) OpenEnrollmentPayment(w http.ResponseWriter, r *http.Request) {
	var req EnrollmentPaymentRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}

	txn, err := h.service.OpenEnrollmentPayment(r.Context(), req.LearnerAccount, req.InstructorAccount, req.Amount, req.EnrollmentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusCreated, SettlementResponse{TransactionID: txn.ID, Status: txn.Status})
}

// Approve
// @Summary Approve settlement
// @Description Post a pending settlement. A payer who can no longer cover it gets a 402 with the failed transaction.
// @Tags Settlements
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 402 {object} DecisionFailure
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /settlements/{transactionId}/approve [post]
func (h *LedgerHandler) Approve(w http.ResponseWriter, r *http.Request) {
	txn, err := h.service.Approve(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		if txn != nil && errors.Is(err, models.ErrInsufficientFunds) {
			SendJSON(w, http.StatusPaymentRequired, DecisionFailure{
				ErrorResponse: models.ErrorResponse{Error: err.Error(), Code: models.ErrorCode(err)},
				Transaction:   txn,
			})
			return
		}
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, txn)
}

// Reject
// @Summary Reject settlement
// @Tags Settlements
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /settlements/{transactionId}/reject [post]
func (h *LedgerHandler) Reject(w http.ResponseWriter, r *http.Request) {
	txn, err := h.service.Reject(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, txn)
}

// GetTransaction
// @Summary Get settlement
// @Tags Settlements
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} models.ErrorResponse
// @Router /settlements/{transactionId} [get]
func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.service.GetTransaction(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, txn)
}

// ListTransactions is the reviewer queue
// @Summary List settlements
// @Tags Settlements
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, validated, rejected or failed"
// @Param kind query string false "Transaction kind"
// @Param account query string false "Account number on either side"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Transaction
// @Failure 400 {object} models.ErrorResponse
// @Router /settlements [get]
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.TransactionFilter{
		Status:  models.Status(q.Get("status")),
		Kind:    models.Kind(q.Get("kind")),
		Account: q.Get("account"),
		Limit:   limit,
		Offset:  offset,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		SendErrorResponse(w, "Unknown status", http.StatusBadRequest, nil)
		return
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		SendErrorResponse(w, "Unknown kind", http.StatusBadRequest, nil)
		return
	}

	txns, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(txns))
}

// ListOutbox is the operator queue
// @Summary List outbox messages
// @Tags Operator
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, delivered or dead"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.OutboxMessage
// @Failure 400 {object} models.ErrorResponse
// @Router /operator/outbox [get]
func (h *LedgerHandler) ListOutbox(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}

	status := models.OutboxStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.OutboxPending, models.OutboxDelivered, models.OutboxDead:
	default:
		SendErrorResponse(w, "Unknown outbox status", http.StatusBadRequest, nil)
		return
	}

	msgs, err := h.service.ListOutbox(r.Context(), status, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(msgs))
}

// RetryOutbox requeues a message with a fresh attempt budget
// @Summary Retry outbox message
// @Tags Operator
// @Produce json
// @Security BearerAuth
// @Param id path string true "Outbox message ID"
// @Success 200 {object} models.OutboxMessage
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /operator/outbox/{id}/retry [post]
func (h *LedgerHandler) RetryOutbox(w http.ResponseWriter, r *http.Request) {
	msg, err := h.service.RetryOutbox(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, msg)
}

func (h *LedgerHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if StatusFor(err) == http.StatusInternalServerError {
		h.log.Error("Ledger request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	WriteError(w, err)
}

// page reads limit and offset query parameters, writing a 400 on bad input.
func page(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = defaultPageSize
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			SendErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest, nil)
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			SendErrorResponse(w, "offset must be a non-negative integer", http.StatusBadRequest, nil)
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
