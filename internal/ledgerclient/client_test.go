package ledgerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/backend/internal/models"
)

func token() (string, error) { return "commerce-token", nil }

func TestClient_OpenEnrollmentPayment(t *testing.T) {
	var got enrollmentPaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/settlements/enrollment-payment", r.URL.Path)
		assert.Equal(t, "Bearer commerce-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"transactionId":"tx-9","status":"pending"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, token)
	id, err := c.OpenEnrollmentPayment(context.Background(), "1111111111", "2222222222", decimal.RequireFromString("5000.00"), 7)
	require.NoError(t, err)
	assert.Equal(t, "tx-9", id)
	assert.Equal(t, "7", got.EnrollmentID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("5000")))
}

func TestClient_DecodesTaxonomyErrors(t *testing.T) {
	tests := []struct {
		status int
		code   string
		want   error
	}{
		{http.StatusPaymentRequired, "InsufficientOrgFunds", models.ErrInsufficientOrgFunds},
		{http.StatusPaymentRequired, "InsufficientFunds", models.ErrInsufficientFunds},
		{http.StatusNotFound, "AccountNotFound", models.ErrAccountNotFound},
		{http.StatusUnauthorized, "InvalidCredential", models.ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(models.ErrorResponse{Error: "nope", Code: tt.code})
			}))
			defer srv.Close()

			c := New(srv.URL, time.Second, token)
			_, err := c.OpenCourseReward(context.Background(), "2222222222", 3)
			assert.ErrorIs(t, err, tt.want)

			var lerr *Error
			require.True(t, errors.As(err, &lerr))
			assert.Equal(t, tt.status, lerr.Status)
		})
	}
}

func TestClient_VerifyCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SecretCredential != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid secret credential","code":"InvalidCredential"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, token)
	assert.NoError(t, c.VerifyCredential(context.Background(), "1111111111", "pw"))
	assert.ErrorIs(t, c.VerifyCredential(context.Background(), "1111111111", "bad"), models.ErrInvalidCredential)
}

func TestClient_UnknownCodeStillErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, token)
	_, err := c.OpenCourseReward(context.Background(), "2222222222", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}
