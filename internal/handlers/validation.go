package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/edulearn/backend/internal/models"
)

const maxBodyBytes = 1_048_576

// ValidationHelper provides shared decoding and validation for handlers
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// Decode reads a single JSON object into dst and validates it. On failure
// the error response has already been written and false is returned.
func (vh *ValidationHelper) Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := vh.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	sendError(w, models.ErrorResponse{Error: message}, statusCode, validationErr)
}

func sendError(w http.ResponseWriter, resp models.ErrorResponse, statusCode int, validationErr error) {
	var verrs validator.ValidationErrors
	if errors.As(validationErr, &verrs) {
		resp.Details = make(map[string]string)
		for _, err := range verrs {
			resp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}
	SendJSON(w, statusCode, resp)
}

func SendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto its HTTP status and wire code.
// Anything outside the taxonomy is reported as a 500 without leaking the
// underlying message.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	code := models.ErrorCode(err)
	message := err.Error()
	if code == "" {
		message = "Internal server error"
	}
	sendError(w, models.ErrorResponse{Error: message, Code: code}, status, nil)
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrDuplicateAccount),
		errors.Is(err, models.ErrAlreadyProcessed),
		errors.Is(err, models.ErrCourseActive),
		errors.Is(err, models.ErrCourseNotActive),
		errors.Is(err, models.ErrEnrollmentPaid),
		errors.Is(err, models.ErrAlreadyEnrolled),
		errors.Is(err, models.ErrOptimisticLock):
		return http.StatusConflict
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrTransactionNotFound),
		errors.Is(err, models.ErrOutboxNotFound),
		errors.Is(err, models.ErrCourseNotFound),
		errors.Is(err, models.ErrEnrollmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInsufficientOrgFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidKind),
		errors.Is(err, models.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotificationFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
