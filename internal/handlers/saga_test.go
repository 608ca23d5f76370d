package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/commerce"
	"github.com/edulearn/backend/internal/config"
	"github.com/edulearn/backend/internal/ledger"
	"github.com/edulearn/backend/internal/ledgerclient"
	"github.com/edulearn/backend/internal/metrics"
	mW "github.com/edulearn/backend/internal/middleware"
	"github.com/edulearn/backend/internal/models"
	"github.com/edulearn/backend/internal/notifier"
	"github.com/edulearn/backend/internal/store/memory"
)

const (
	testSecret     = "test-secret"
	orgAccount     = "0000000001"
	learnerAccount = "1111111111"
	instrAccount   = "2222222222"
)

// saga wires both services over real HTTP, with the dispatcher driven by
// hand through DrainOnce.
type saga struct {
	ledger     *ledger.Service
	repo       *commerce.MemoryRepository
	dispatcher *notifier.Dispatcher
	ledgerURL  string
	commerce   string
	bank       string
}

func newSaga(t *testing.T, orgSeed, welcomeGrant string) *saga {
	t.Helper()
	log := zap.NewNop()

	st := memory.New()
	hasher := ledger.NewHasher(&config.Argon2Config{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 16, SaltLength: 8})
	svc := ledger.NewService(st, hasher, ledger.Options{
		OrganizationAccount: orgAccount,
		OrganizationName:    "EduLearn",
		OrganizationSeed:    decimal.RequireFromString(orgSeed),
		WelcomeGrant:        decimal.RequireFromString(welcomeGrant),
		CourseReward:        decimal.RequireFromString("1500.00"),
		InstructorShareRate: decimal.RequireFromString("0.80"),
	}, log)
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	ledgerSrv := httptest.NewServer(NewLedgerRouter(NewLedgerHandler(svc, log), RouterConfig{
		JWTSecret: testSecret,
		Metrics:   metrics.New("ledger", reg),
		Gatherer:  reg,
	}))
	t.Cleanup(ledgerSrv.Close)

	repo := commerce.NewMemoryRepository()
	lc := ledgerclient.New(ledgerSrv.URL, 5*time.Second,
		mW.TokenSource(testSecret, "commerce", mW.RoleCommerce, time.Minute))
	commerceSrv := httptest.NewServer(NewCommerceRouter(
		NewCommerceHandler(commerce.NewService(repo, lc, log), log),
		RouterConfig{JWTSecret: testSecret}))
	t.Cleanup(commerceSrv.Close)

	client := notifier.NewCommerceClient(commerceSrv.URL, 5*time.Second,
		mW.TokenSource(testSecret, "ledger", mW.RoleLedger, time.Minute), log)
	d := notifier.NewDispatcher(st, client, nil, config.NotifierConfig{
		PollInterval: time.Second, BaseBackoff: time.Second, MaxBackoff: time.Minute,
		MaxAttempts: 3, BatchSize: 10, RequestTimeout: 5 * time.Second,
	}, log)
	svc.SetWaker(d)

	bank, err := mW.IssueToken(testSecret, "reviewer", mW.RoleBank, time.Minute)
	require.NoError(t, err)

	return &saga{
		ledger:     svc,
		repo:       repo,
		dispatcher: d,
		ledgerURL:  ledgerSrv.URL,
		commerce:   commerceSrv.URL,
		bank:       bank,
	}
}

func call(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, url, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *saga) openAccount(t *testing.T, number, role string) {
	t.Helper()
	status := call(t, http.MethodPost, s.ledgerURL+"/api/v1/accounts", s.bank, OpenAccountRequest{
		AccountNumber:    number,
		OwnerName:        "Owner " + number,
		Role:             role,
		SecretCredential: "pin-" + number,
	}, nil)
	require.Equal(t, http.StatusCreated, status)
}

func (s *saga) balance(t *testing.T, number string) string {
	t.Helper()
	var out BalanceResponse
	status := call(t, http.MethodGet, s.ledgerURL+"/api/v1/accounts/"+number+"/balance", s.bank, nil, &out)
	require.Equal(t, http.StatusOK, status)
	return out.Balance.StringFixed(2)
}

func (s *saga) drain(t *testing.T, want int) {
	t.Helper()
	attempted, err := s.dispatcher.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, attempted)
}

func (s *saga) createCourse(t *testing.T, price string) (*models.Course, int) {
	t.Helper()
	var course models.Course
	status := call(t, http.MethodPost, s.commerce+"/api/v1/courses", "", CreateCourseRequest{
		InstructorID:      "instructor-1",
		InstructorAccount: instrAccount,
		Title:             "Distributed Systems",
		Description:       "Sagas and outboxes",
		Price:             decimal.RequireFromString(price),
		Duration:          "4 weeks",
	}, &course)
	return &course, status
}

func TestSaga_EnrollmentPaymentEndToEnd(t *testing.T) {
	s := newSaga(t, "100000.00", "15000.00")
	s.openAccount(t, learnerAccount, "learner")
	s.openAccount(t, instrAccount, "instructor")
	require.Equal(t, "15000.00", s.balance(t, learnerAccount))

	course, status := s.createCourse(t, "5000.00")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.CourseStatusPending, course.Status)
	require.NotEmpty(t, course.CorrelationTransactionID)

	var queue []models.Transaction
	require.Equal(t, http.StatusOK, call(t, http.MethodGet,
		s.ledgerURL+"/api/v1/settlements?status=pending", s.bank, nil, &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, models.KindCreationReward, queue[0].Kind)
	assert.Equal(t, fmt.Sprint(course.ID), queue[0].CorrelationID)

	var reward models.Transaction
	require.Equal(t, http.StatusOK, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+course.CorrelationTransactionID+"/approve", s.bank, nil, &reward))
	assert.Equal(t, models.StatusValidated, reward.Status)

	s.drain(t, 1)
	var active models.Course
	require.Equal(t, http.StatusOK, call(t, http.MethodGet,
		fmt.Sprintf("%s/api/v1/courses/%d", s.commerce, course.ID), "", nil, &active))
	assert.True(t, active.Active())

	var enrollment models.Enrollment
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, s.commerce+"/api/v1/enrollments", "", EnrollRequest{
		LearnerID:        "learner-1",
		LearnerAccount:   learnerAccount,
		SecretCredential: "pin-" + learnerAccount,
		CourseID:         course.ID,
	}, &enrollment))
	assert.False(t, enrollment.PaymentValidated)

	var access commerce.Access
	accessURL := fmt.Sprintf("%s/api/v1/enrollments/access?learnerId=learner-1&courseId=%d", s.commerce, course.ID)
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, accessURL, "", nil, &access))
	assert.False(t, access.HasAccess)

	var payment models.Transaction
	require.Equal(t, http.StatusOK, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+enrollment.CorrelationTransactionID+"/approve", s.bank, nil, &payment))
	assert.Equal(t, models.StatusApproved, payment.Status)

	s.drain(t, 1)

	assert.Equal(t, "10000.00", s.balance(t, learnerAccount))
	assert.Equal(t, "5500.00", s.balance(t, instrAccount))
	assert.Equal(t, "84500.00", s.balance(t, orgAccount))

	var paid models.Enrollment
	require.Equal(t, http.StatusOK, call(t, http.MethodGet,
		fmt.Sprintf("%s/api/v1/enrollments/%d", s.commerce, enrollment.ID), "", nil, &paid))
	assert.True(t, paid.PaymentValidated)

	require.Equal(t, http.StatusOK, call(t, http.MethodGet, accessURL, "", nil, &access))
	assert.True(t, access.HasAccess)
	assert.InDelta(t, 28, access.DaysRemaining, 1)

	require.Equal(t, http.StatusOK, call(t, http.MethodGet,
		fmt.Sprintf("%s/api/v1/courses/%d", s.commerce, course.ID), "", nil, &active))
	assert.Equal(t, 1, active.EnrolledCount)

	var history []models.Transaction
	require.Equal(t, http.StatusOK, call(t, http.MethodGet,
		s.ledgerURL+"/api/v1/accounts/"+instrAccount+"/transactions", s.bank, nil, &history))
	require.Len(t, history, 2)

	var again models.ErrorResponse
	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+enrollment.CorrelationTransactionID+"/approve", s.bank, nil, &again))
	assert.Equal(t, "AlreadyProcessed", again.Code)
}

func TestSaga_ListingsShowPendingState(t *testing.T) {
	s := newSaga(t, "100000.00", "15000.00")
	s.openAccount(t, learnerAccount, "learner")
	s.openAccount(t, instrAccount, "instructor")

	course, status := s.createCourse(t, "5000.00")
	require.Equal(t, http.StatusCreated, status)

	var catalogue []models.Course
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, s.commerce+"/api/v1/courses", "", nil, &catalogue))
	assert.Empty(t, catalogue)

	var mine []models.Course
	require.Equal(t, http.StatusOK, call(t, http.MethodGet,
		s.commerce+"/api/v1/courses?instructorId=instructor-1", "", nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, models.CourseStatusPending, mine[0].Status)
	assert.False(t, mine[0].FundingValidated)

	require.Equal(t, http.StatusOK, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+course.CorrelationTransactionID+"/approve", s.bank, nil, nil))
	s.drain(t, 1)

	require.Equal(t, http.StatusOK, call(t, http.MethodGet, s.commerce+"/api/v1/courses", "", nil, &catalogue))
	require.Len(t, catalogue, 1)
	assert.Equal(t, course.ID, catalogue[0].ID)
	assert.True(t, catalogue[0].Active())

	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, s.commerce+"/api/v1/enrollments", "", EnrollRequest{
		LearnerID:        "learner-1",
		LearnerAccount:   learnerAccount,
		SecretCredential: "pin-" + learnerAccount,
		CourseID:         course.ID,
	}, nil))

	var enrollments []models.Enrollment
	require.Equal(t, http.StatusOK, call(t, http.MethodGet,
		s.commerce+"/api/v1/enrollments?learnerId=learner-1", "", nil, &enrollments))
	require.Len(t, enrollments, 1)
	assert.False(t, enrollments[0].PaymentValidated)
	require.NotNil(t, enrollments[0].Course)
	assert.Equal(t, "Distributed Systems", enrollments[0].Course.Title)

	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodGet, s.commerce+"/api/v1/enrollments", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodGet, s.commerce+"/api/v1/courses?status=archived", "", nil, nil))
}

func TestSaga_InsufficientOrganizationFunds(t *testing.T) {
	s := newSaga(t, "1000.00", "0")
	s.openAccount(t, instrAccount, "instructor")

	var resp models.ErrorResponse
	status := call(t, http.MethodPost, s.commerce+"/api/v1/courses", "", CreateCourseRequest{
		InstructorID:      "instructor-1",
		InstructorAccount: instrAccount,
		Title:             "Unfunded",
		Description:       "No reward available",
		Price:             decimal.RequireFromString("100.00"),
		Duration:          "1 month",
	}, &resp)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "InsufficientOrgFunds", resp.Code)

	_, err := s.repo.GetCourse(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrCourseNotFound)

	txns, err := s.ledger.ListTransactions(context.Background(), models.TransactionFilter{Kind: models.KindCreationReward})
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, "1000.00", s.balance(t, orgAccount))
}

func TestSaga_RejectedCourseIsCompensated(t *testing.T) {
	s := newSaga(t, "100000.00", "0")
	s.openAccount(t, instrAccount, "instructor")

	course, status := s.createCourse(t, "200.00")
	require.Equal(t, http.StatusCreated, status)

	var rejected models.Transaction
	require.Equal(t, http.StatusOK, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+course.CorrelationTransactionID+"/reject", s.bank, nil, &rejected))
	assert.Equal(t, models.StatusRejected, rejected.Status)

	s.drain(t, 1)

	var resp models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet,
		fmt.Sprintf("%s/api/v1/courses/%d", s.commerce, course.ID), "", nil, &resp))
	assert.Equal(t, "100000.00", s.balance(t, orgAccount))
}

func TestSaga_FailedApprovalCompensatesEnrollment(t *testing.T) {
	s := newSaga(t, "100000.00", "100.00")
	s.openAccount(t, learnerAccount, "learner")
	s.openAccount(t, instrAccount, "instructor")

	course, status := s.createCourse(t, "80.00")
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, http.StatusOK, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+course.CorrelationTransactionID+"/approve", s.bank, nil, nil))
	s.drain(t, 1)

	// Second course so the learner can hold two pending payments.
	other, status := s.createCourse(t, "80.00")
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, http.StatusOK, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+other.CorrelationTransactionID+"/approve", s.bank, nil, nil))
	s.drain(t, 1)

	enroll := func(courseID int64) models.Enrollment {
		var e models.Enrollment
		require.Equal(t, http.StatusCreated, call(t, http.MethodPost, s.commerce+"/api/v1/enrollments", "", EnrollRequest{
			LearnerID: "learner-1", LearnerAccount: learnerAccount,
			SecretCredential: "pin-" + learnerAccount, CourseID: courseID,
		}, &e))
		return e
	}
	first := enroll(course.ID)
	second := enroll(other.ID)

	require.Equal(t, http.StatusOK, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+first.CorrelationTransactionID+"/approve", s.bank, nil, nil))

	var failure DecisionFailure
	require.Equal(t, http.StatusPaymentRequired, call(t, http.MethodPost,
		s.ledgerURL+"/api/v1/settlements/"+second.CorrelationTransactionID+"/approve", s.bank, nil, &failure))
	assert.Equal(t, "InsufficientFunds", failure.Code)
	require.NotNil(t, failure.Transaction)
	assert.Equal(t, models.StatusFailed, failure.Transaction.Status)

	s.drain(t, 2)

	_, err := s.repo.GetEnrollment(context.Background(), second.ID)
	assert.ErrorIs(t, err, models.ErrEnrollmentNotFound)
	paid, err := s.repo.GetEnrollment(context.Background(), first.ID)
	require.NoError(t, err)
	assert.True(t, paid.PaymentValidated)
	assert.Equal(t, "20.00", s.balance(t, learnerAccount))
}

func TestSaga_RoleChecks(t *testing.T) {
	s := newSaga(t, "1000.00", "0")
	commerceToken, err := mW.IssueToken(testSecret, "commerce", mW.RoleCommerce, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		url    string
		token  string
		want   int
	}{
		{"no token on ledger", http.MethodGet, s.ledgerURL + "/api/v1/accounts/" + orgAccount + "/balance", "", http.StatusUnauthorized},
		{"commerce may read balances", http.MethodGet, s.ledgerURL + "/api/v1/accounts/" + orgAccount + "/balance", commerceToken, http.StatusOK},
		{"commerce cannot decide", http.MethodPost, s.ledgerURL + "/api/v1/settlements/x/approve", commerceToken, http.StatusForbidden},
		{"commerce cannot list the queue", http.MethodGet, s.ledgerURL + "/api/v1/settlements", commerceToken, http.StatusForbidden},
		{"bank cannot call commerce back", http.MethodPut, s.commerce + "/api/v1/courses/1/activate", s.bank, http.StatusForbidden},
		{"callbacks need a token", http.MethodDelete, s.commerce + "/api/v1/enrollments/1", "", http.StatusUnauthorized},
		{"health is public", http.MethodGet, s.ledgerURL + "/health", "", http.StatusOK},
		{"metrics are exposed", http.MethodGet, s.ledgerURL + "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, call(t, tt.method, tt.url, tt.token, nil, nil))
		})
	}
}

func TestLedgerHandler_BadQueries(t *testing.T) {
	s := newSaga(t, "1000.00", "0")

	for _, url := range []string{
		"/api/v1/settlements?status=unknown",
		"/api/v1/settlements?kind=gift",
		"/api/v1/settlements?limit=0",
		"/api/v1/operator/outbox?status=lost",
		"/api/v1/operator/outbox?offset=-1",
	} {
		t.Run(url, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, call(t, http.MethodGet, s.ledgerURL+url, s.bank, nil, nil))
		})
	}

	var resp models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, s.ledgerURL+"/api/v1/accounts", s.bank,
		OpenAccountRequest{OwnerName: "Org", Role: "organization", SecretCredential: "pin-0000"}, &resp))
	assert.Equal(t, "InvalidRole", resp.Code)
}
