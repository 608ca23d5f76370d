package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/edulearn/backend/docs"
	"github.com/edulearn/backend/internal/metrics"
	mW "github.com/edulearn/backend/internal/middleware"
)

type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
}

// NewLedgerRouter mounts the ledger API. Commerce opens settlements and
// accounts; decisions and the operator queue belong to the bank.
func NewLedgerRouter(h *LedgerHandler, cfg RouterConfig) http.Handler {
	r := baseRouter(cfg, docs.LedgerInfo.InstanceName())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.RequireRole(cfg.JWTSecret, mW.RoleCommerce, mW.RoleBank))

			r.Post("/accounts", h.OpenAccount)
			r.Post("/accounts/verify", h.VerifyCredential)
			r.Get("/accounts/{accountNumber}", h.GetAccount)
			r.Get("/accounts/{accountNumber}/balance", h.GetBalance)
			r.Get("/accounts/{accountNumber}/transactions", h.History)

			r.Post("/settlements/course-reward", h.OpenCourseReward)
			r.Post("/settlements/enrollment-payment", h.OpenEnrollmentPayment)
			r.Get("/settlements/{transactionId}", h.GetTransaction)
		})

		r.Group(func(r chi.Router) {
			r.Use(mW.RequireRole(cfg.JWTSecret, mW.RoleBank))

			r.Get("/settlements", h.ListTransactions)
			r.Post("/settlements/{transactionId}/approve", h.Approve)
			r.Post("/settlements/{transactionId}/reject", h.Reject)

			r.Get("/operator/outbox", h.ListOutbox)
			r.Post("/operator/outbox/{id}/retry", h.RetryOutbox)
		})
	})

	return r
}

// NewCommerceRouter mounts the commerce API. Course and enrollment routes are
// public; the activation and compensation callbacks only accept the ledger.
func NewCommerceRouter(h *CommerceHandler, cfg RouterConfig) http.Handler {
	r := baseRouter(cfg, docs.CommerceInfo.InstanceName())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/courses", h.ListCourses)
		r.Post("/courses", h.CreateCourse)
		r.Get("/courses/{id}", h.GetCourse)
		r.Get("/enrollments", h.ListEnrollments)
		r.Post("/enrollments", h.Enroll)
		r.Get("/enrollments/access", h.CheckAccess)
		r.Get("/enrollments/{id}", h.GetEnrollment)

		r.Group(func(r chi.Router) {
			r.Use(mW.RequireRole(cfg.JWTSecret, mW.RoleLedger))

			r.Put("/courses/{id}/activate", h.ActivateCourse)
			r.Delete("/courses/{id}", h.CompensateCourse)
			r.Post("/enrollments/{id}/activate", h.ActivateEnrollment)
			r.Delete("/enrollments/{id}", h.CompensateEnrollment)
		})
	})

	return r
}

func baseRouter(cfg RouterConfig, docsInstance string) chi.Router {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		SendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.InstanceName(docsInstance),
	))

	return r
}
