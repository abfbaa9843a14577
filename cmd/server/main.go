package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/utilipay/internal/auth"
	"github.com/mmynk/utilipay/internal/balance"
	"github.com/mmynk/utilipay/internal/config"
	"github.com/mmynk/utilipay/internal/insight"
	"github.com/mmynk/utilipay/internal/metrics"
	"github.com/mmynk/utilipay/internal/middleware"
	"github.com/mmynk/utilipay/internal/service"
	"github.com/mmynk/utilipay/internal/settlement"
	"github.com/mmynk/utilipay/internal/storage/sqlite"
	"github.com/mmynk/utilipay/pkg/api/apiconnect"
	"github.com/mmynk/utilipay/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(logging.NewHandler(os.Stderr, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if !cfg.PlaidEnabled() {
		return errors.New("PLAID_CLIENT_ID and PLAID_SECRET are required")
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.Database.Path)

	metrics.Init(store, logger)

	plaid, err := balance.NewPlaidClient(balance.PlaidConfig{
		BaseURL:    cfg.Plaid.BaseURL,
		ClientID:   cfg.Plaid.ClientID,
		Secret:     cfg.Plaid.Secret,
		ClientName: cfg.Plaid.ClientName,
	})
	if err != nil {
		return err
	}
	oracle := balance.NewOracle(plaid, balance.OracleConfig{
		Timeout:          cfg.Provider.Timeout,
		FailureThreshold: cfg.Provider.FailureThreshold,
		Cooldown:         cfg.Provider.Cooldown,
	}, logger)

	delay := cfg.Settlement.Delay
	if delay == 0 {
		delay = -1
	}
	leg := &settlement.SimulatedLeg{Delay: delay}
	orchestrator := settlement.New(store, oracle, leg, logger)
	reconciler := settlement.NewReconciler(store, cfg.Settlement.ReconcileWorkers, logger).
		WithLegRerun(leg, cfg.Settlement.StaleAfter)

	// A nil interface keeps the insight endpoints answering Unimplemented.
	var generator insight.Generator
	if cfg.Insight.GeminiAPIKey != "" {
		gemini, err := insight.NewGeminiClient(insight.GeminiConfig{
			BaseURL: cfg.Insight.BaseURL,
			APIKey:  cfg.Insight.GeminiAPIKey,
			Model:   cfg.Insight.Model,
			Timeout: cfg.Insight.Timeout,
		})
		if err != nil {
			return err
		}
		generator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, insights disabled")
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	logged := middleware.LoggingInterceptor(logger)
	public := connect.WithInterceptors(middleware.OptionalAuth(jwtManager), logged)
	private := connect.WithInterceptors(middleware.RequireAuth(jwtManager), logged)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(service.NewAuthService(authenticator, store, jwtManager, logger), public))
	mux.Handle(apiconnect.NewLinkServiceHandler(service.NewLinkService(store, plaid, logger), private))
	mux.Handle(apiconnect.NewBillingServiceHandler(service.NewBillingService(store, orchestrator, logger), private))
	mux.Handle(apiconnect.NewInsightServiceHandler(service.NewInsightService(store, insight.NewAdvisor(generator, logger), logger), private))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.DB().PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(middleware.HTTPLogging(logger, middleware.CORS(mux)), &http2.Server{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The store is closed on return, so every goroutine touching it is
	// joined before run exits.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reconciler.Run(gctx, cfg.Settlement.ReconcileInterval, cfg.Settlement.StaleAfter)
		return nil
	})
	g.Go(func() error {
		logger.Info("Connect server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
