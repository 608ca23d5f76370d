package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/ledger"
	mW "github.com/edulearn/backend/internal/middleware"
	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/store/postgres"
)

// newPostgresLedger serves the ledger API over a sqlmock-backed store so
// tests can assert exactly which queries a request reaches.
func newPostgresLedger(t *testing.T) (http.Handler, sqlmock.Sqlmock, string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := ledger.NewService(postgres.New(db), nil, ledger.Options{OrganizationAccount: orgAccount}, zap.NewNop())
	router := NewLedgerRouter(NewLedgerHandler(svc, zap.NewNop()), RouterConfig{JWTSecret: testSecret})

	bank, err := mW.IssueToken(testSecret, "reviewer", mW.RoleBank, time.Minute)
	require.NoError(t, err)
	return router, mock, bank
}

func TestLedgerHandler_MalformedIDsAreNotFound(t *testing.T) {
	tests := []struct {
		method string
		path   string
		code   string
	}{
		{http.MethodGet, "/api/v1/settlements/abc", "TransactionNotFound"},
		{http.MethodPost, "/api/v1/settlements/abc/approve", "TransactionNotFound"},
		{http.MethodPost, "/api/v1/settlements/1234/reject", "TransactionNotFound"},
		{http.MethodPost, "/api/v1/operator/outbox/not-a-uuid/retry", "OutboxNotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			router, mock, bank := newPostgresLedger(t)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+bank)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNotFound, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NoError(t, mock.ExpectationsWereMet(), "no query should reach the database")
		})
	}
}

func TestLedgerHandler_SettlementIDIsCanonicalized(t *testing.T) {
	router, mock, bank := newPostgresLedger(t)
	id := "3F2504E0-4F89-11D3-9A0C-0305E82C3301"
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1").
		WithArgs(strings.ToLower(id)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settlements/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+bank)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
