package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edulearn/backend/docs"
	"github.com/edulearn/backend/internal/commerce"
	"github.com/edulearn/backend/internal/config"
	"github.com/edulearn/backend/internal/database"
	"github.com/edulearn/backend/internal/handlers"
	"github.com/edulearn/backend/internal/ledgerclient"
	"github.com/edulearn/backend/internal/logger"
	"github.com/edulearn/backend/internal/metrics"
	mW "github.com/edulearn/backend/internal/middleware"
)

// @title EduLearn Commerce API
// @version 1.0
// @description Courses and enrollments funded through the ledger
// @host localhost:5000
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	config.Init(os.Getenv("CONFIG_FILE"))

	logr, err := logger.New("commerce")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logr.Sync()

	if err := run(logr); err != nil {
		logr.Fatal("Commerce exited with error", zap.Error(err))
	}
}

func openRepository(logr *zap.Logger) (commerce.Repository, func(), error) {
	dbCfg := config.LoadDB("edulearn_commerce")
	if dbCfg.Driver == "memory" {
		logr.Warn("Using in-memory commerce repository")
		return commerce.NewMemoryRepository(), func() {}, nil
	}

	db, err := database.InitDB(dbCfg, logr)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(context.Background(), db, database.CommerceSchema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate commerce schema: %w", err)
	}
	return commerce.NewPostgresRepository(db), func() { db.Close() }, nil
}

func run(logr *zap.Logger) error {
	auth := config.LoadAuth()
	if auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}
	cfg := config.LoadCommerce()

	repo, closeRepo, err := openRepository(logr)
	if err != nil {
		return err
	}
	defer closeRepo()

	ledgerClient := ledgerclient.New(cfg.LedgerURL, cfg.RequestTimeout,
		mW.TokenSource(auth.JWTSecret, "commerce", mW.RoleCommerce, auth.TokenTTL))
	svc := commerce.NewService(repo, ledgerClient, logr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	docs.CommerceInfo.Host = "localhost:" + cfg.Port

	router := handlers.NewCommerceRouter(handlers.NewCommerceHandler(svc, logr), handlers.RouterConfig{
		JWTSecret: auth.JWTSecret,
		Metrics:   metrics.New("commerce", reg),
		Gatherer:  reg,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("Commerce server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logr.Info("Commerce server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logr.Info("Commerce server stopped")
	return nil
}
