package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jinhuaitao/accounting/internal/auth"
	"github.com/jinhuaitao/accounting/internal/config"
	"github.com/jinhuaitao/accounting/internal/events"
	"github.com/jinhuaitao/accounting/internal/handlers"
	"github.com/jinhuaitao/accounting/internal/ledger"
	"github.com/jinhuaitao/accounting/internal/logging"
	"github.com/jinhuaitao/accounting/internal/report"
	"github.com/jinhuaitao/accounting/internal/storage"
	"github.com/jinhuaitao/accounting/web"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// recordStore is a Store whose expired records can be purged.
type recordStore interface {
	storage.Store
	CleanExpired(ctx context.Context) (int64, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
	logger.Info("Server stopped gracefully")
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	publisher, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if c, ok := publisher.(io.Closer); ok {
		defer c.Close()
	}

	signer, err := auth.NewCookieSigner(cfg.SessionSecret)
	if err != nil {
		return err
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set: sessions will not survive a restart")
	}
	if cfg.AppPassword == "" {
		logger.Warn("APP_PASSWORD not set: login only works once a password is stored with ledgerctl passwd")
	}

	h, err := handlers.NewHandlers(handlers.Deps{
		Auth: auth.NewAuthenticator(store, auth.Options{
			UserID:      cfg.UserID,
			Password:    cfg.AppPassword,
			SessionTTL:  cfg.SessionTTL,
			MaxAttempts: cfg.LoginMaxAttempts,
			Lockout:     cfg.LoginLockout,
		}, logger),
		Cookies:      signer,
		Ledger:       ledger.NewRepository(store, publisher, logger),
		Reports:      report.NewEngine(report.NewCalendar(cfg.TZOffset), logger),
		Templates:    web.Templates(),
		SecureCookie: cfg.SecureCookie,
		Log:          logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        setupRouter(h, web.Static(), logger),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr":      srv.Addr,
			"backend":   cfg.StoreBackend,
			"tz_offset": cfg.TZOffset.String(),
		}).Info("Starting accounting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		sweep(gctx, store, cfg.SweepInterval, logger)
		return nil
	})
	return g.Wait()
}

func openStore(cfg *config.Config) (recordStore, error) {
	if cfg.StoreBackend == "memory" {
		return storage.NewMemory(), nil
	}
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func openPublisher(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.Nop{}, nil
	}
	p, err := events.DialAMQP(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return nil, err
	}
	logger.WithField("exchange", cfg.AMQPExchange).Info("Publishing transaction events")
	return p, nil
}

// sweep purges expired sessions and login counters every interval until ctx is done.
func sweep(ctx context.Context, store recordStore, interval time.Duration, logger logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanExpired(ctx)
			if err != nil {
				logger.WithError(err).Error("Failed to clean expired records")
				continue
			}
			if n > 0 {
				logger.WithField("removed", n).Debug("Cleaned expired records")
			}
		}
	}
}

func setupRouter(h *handlers.Handlers, static fs.FS, logger logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	// Auth routes
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)

	// Pages
	mux.Handle("GET /{$}", h.AuthMiddleware(http.HandlerFunc(h.Index)))

	// JSON API
	api := func(fn http.HandlerFunc) http.Handler { return h.APIAuthMiddleware(fn) }
	mux.Handle("GET /api/transactions", api(h.ListTransactions))
	mux.Handle("POST /api/transactions", api(h.CreateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", api(h.DeleteTransaction))
	mux.Handle("GET /api/summary", api(h.Summary))
	mux.Handle("GET /api/daily_balance", api(h.DailyBalance))
	mux.Handle("GET /api/monthly_balance", api(h.MonthlyBalance))
	mux.Handle("GET /api/weekly_balance", api(h.WeeklyBalance))

	return logging.Middleware(logger)(mux)
}
