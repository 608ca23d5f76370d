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
	"github.com/edulearn/backend/internal/config"
	"github.com/edulearn/backend/internal/database"
	"github.com/edulearn/backend/internal/handlers"
	"github.com/edulearn/backend/internal/ledger"
	"github.com/edulearn/backend/internal/logger"
	"github.com/edulearn/backend/internal/metrics"
	mW "github.com/edulearn/backend/internal/middleware"
	"github.com/edulearn/backend/internal/notifier"
	"github.com/edulearn/backend/internal/store"
	"github.com/edulearn/backend/internal/store/memory"
	"github.com/edulearn/backend/internal/store/postgres"
)

// @title EduLearn Ledger API
// @version 1.0
// @description Double-entry ledger settling course rewards and enrollment payments
// @host localhost:5002
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const usage = `usage: ledger [serve | bootstrap | token <role> <subject>]`

func main() {
	config.Init(os.Getenv("CONFIG_FILE"))

	logr, err := logger.New("ledger")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logr.Sync()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		err = serve(logr)
	case "bootstrap":
		err = bootstrap(logr)
	case "token":
		err = printToken(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("Ledger exited with error", zap.String("command", cmd), zap.Error(err))
	}
}

// openStore returns the configured ledger store and a cleanup func.
func openStore(logr *zap.Logger) (store.LedgerStore, func(), error) {
	dbCfg := config.LoadDB("edulearn_ledger")
	if dbCfg.Driver == "memory" {
		logr.Warn("Using in-memory ledger store, balances will not survive a restart")
		return memory.New(), func() {}, nil
	}

	db, err := database.InitDB(dbCfg, logr)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(context.Background(), db, database.LedgerSchema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate ledger schema: %w", err)
	}
	return postgres.New(db), func() { db.Close() }, nil
}

func newService(st store.LedgerStore, logr *zap.Logger) (*ledger.Service, *config.LedgerConfig) {
	cfg := config.LoadLedger()
	hasher := ledger.NewHasher(config.LoadArgon2())
	return ledger.NewService(st, hasher, ledger.OptionsFromConfig(cfg), logr), cfg
}

func bootstrap(logr *zap.Logger) error {
	st, closeStore, err := openStore(logr)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, _ := newService(st, logr)
	org, err := svc.Bootstrap(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("organization account %s balance %s\n", org.AccountNumber, org.Balance.StringFixed(2))
	return nil
}

func printToken(args []string) error {
	if len(args) != 2 {
		return errors.New(usage)
	}
	auth := config.LoadAuth()
	if auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}
	token, err := mW.IssueToken(auth.JWTSecret, args[1], args[0], 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func serve(logr *zap.Logger) error {
	auth := config.LoadAuth()
	if auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}

	st, closeStore, err := openStore(logr)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, cfg := newService(st, logr)
	if cfg.BootstrapOnStart {
		if _, err := svc.Bootstrap(context.Background()); err != nil {
			return fmt.Errorf("bootstrap organization: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("ledger", reg)
	svc.SetMetrics(m)

	var lease notifier.Lease
	rdb := database.InitRedis(config.LoadRedis(), logr)
	if rdb != nil {
		defer rdb.Close()
		svc.SetEventPublisher(ledger.NewRedisPublisher(rdb, logr))
		lease = notifier.NewRedisLease(rdb, cfg.Notifier.LeaseTTL)
	}

	client := notifier.NewCommerceClient(cfg.CommerceURL, cfg.Notifier.RequestTimeout,
		mW.TokenSource(auth.JWTSecret, "ledger", mW.RoleLedger, auth.TokenTTL), logr)
	dispatcher := notifier.NewDispatcher(st, client, lease, cfg.Notifier, logr)
	dispatcher.SetMetrics(m)
	svc.SetWaker(dispatcher)

	docs.LedgerInfo.Host = "localhost:" + cfg.Port

	router := handlers.NewLedgerRouter(handlers.NewLedgerHandler(svc, logr), handlers.RouterConfig{
		JWTSecret: auth.JWTSecret,
		Metrics:   m,
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
		logr.Info("Ledger server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logr.Info("Ledger server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logr.Info("Ledger server stopped")
	return nil
}
