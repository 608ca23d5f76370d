package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/backend/internal/ledgerclient"
	"github.com/edulearn/backend/internal/models"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid request", func(t *testing.T) {
		err := vh.ValidateStruct(&VerifyRequest{AccountNumber: "1111111111", SecretCredential: "pin"})
		assert.NoError(t, err)
	})

	t.Run("missing fields", func(t *testing.T) {
		err := vh.ValidateStruct(&OpenAccountRequest{AccountNumber: "12ab"})
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		fields := make([]string, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, e.Field())
		}
		assert.ElementsMatch(t, []string{"AccountNumber", "OwnerName", "Role", "SecretCredential"}, fields)
	})

	t.Run("payer and payee must differ", func(t *testing.T) {
		err := vh.ValidateStruct(&EnrollmentPaymentRequest{
			LearnerAccount: "1111111111", InstructorAccount: "1111111111", EnrollmentID: "1",
		})
		require.Error(t, err)
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Something went wrong", resp.Error)
		assert.Nil(t, resp.Details)
	})

	t.Run("validation details", func(t *testing.T) {
		verr := NewValidationHelper().ValidateStruct(&VerifyRequest{})
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, verr)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Field Validation Failed on 'required' tag", resp.Details["AccountNumber"])
		assert.Contains(t, resp.Details, "SecretCredential")
	})
}

func TestValidationHelper_Decode(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", `{"accountNumber":"1111111111","secretCredential":"pin"}`, true},
		{"unknown field", `{"accountNumber":"1","secretCredential":"p","admin":true}`, false},
		{"trailing object", `{"accountNumber":"1","secretCredential":"p"}{}`, false},
		{"malformed", `{"accountNumber":`, false},
		{"fails validation", `{"accountNumber":"1"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var req VerifyRequest
			ok := NewValidationHelper().Decode(w, r, &req)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrDuplicateAccount, http.StatusConflict, "DuplicateAccount"},
		{fmt.Errorf("payer 1: %w", models.ErrAccountNotFound), http.StatusNotFound, "AccountNotFound"},
		{models.ErrInvalidCredential, http.StatusUnauthorized, "InvalidCredential"},
		{fmt.Errorf("%w: transaction x failed", models.ErrInsufficientFunds), http.StatusPaymentRequired, "InsufficientFunds"},
		{models.ErrInsufficientOrgFunds, http.StatusPaymentRequired, "InsufficientOrgFunds"},
		{models.ErrAlreadyProcessed, http.StatusConflict, "AlreadyProcessed"},
		{models.ErrInvalidAmount, http.StatusBadRequest, "InvalidAmount"},
		{models.ErrInvalidRole, http.StatusBadRequest, "InvalidRole"},
		{models.ErrCourseActive, http.StatusConflict, "CourseActive"},
		{models.ErrEnrollmentPaid, http.StatusConflict, "EnrollmentPaid"},
		{models.ErrEnrollmentNotFound, http.StatusNotFound, "EnrollmentNotFound"},
		{&ledgerclient.Error{Status: 402, Code: "InsufficientOrgFunds"}, http.StatusPaymentRequired, "InsufficientOrgFunds"},
		{errors.New("connection refused"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			if tt.code == "" {
				assert.Equal(t, "Internal server error", resp.Error)
			}
		})
	}
}
