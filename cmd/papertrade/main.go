package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/papertrade/internal/config"
	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/handler"
	"github.com/efreitasn/papertrade/internal/metrics"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/efreitasn/papertrade/internal/stream"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, syncLogs, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("failed to build logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer syncLogs()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		syncLogs()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage.
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	walletStore := store.NewWalletStore(db)
	holdingStore := store.NewHoldingStore(db)
	orderStore := store.NewOrderStore(db)

	m := metrics.New()

	// Engine.
	oracle := engine.NewOracle(domain.DefaultCatalog(), nil)
	locks := engine.NewUserLocks()
	hub := stream.NewHub(stream.NewRegistry(oracle.Has), oracle, m, logger)
	ticker := engine.NewTicker(cfg.TickInterval, oracle, hub, m, logger)

	// Services.
	walletSvc := service.NewWalletService(db, walletStore, cfg.StartingBalance, cfg.Currency)
	holdingSvc := service.NewHoldingService(db, holdingStore)
	orderSvc := service.NewOrderService(
		db,
		oracle,
		walletSvc,
		holdingSvc,
		orderStore,
		locks,
		cfg.SettlementTimeout,
		cfg.SettlementRetries,
		m,
		logger,
	)
	portfolioSvc := service.NewPortfolioService(walletSvc, holdingSvc, oracle)
	marketSvc := service.NewMarketService(oracle)

	// Router.
	auth := handler.NewAuthenticator(cfg.JWTSecret, cfg.AuthDisabled)
	if cfg.AuthDisabled {
		logger.Warn("authentication disabled, trusting X-User-ID header")
	}
	router := handler.NewRouter(marketSvc, walletSvc, portfolioSvc, orderSvc, hub, auth, m, cfg.CORSOrigins, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("db_driver", cfg.DBDriver),
			slog.Int("symbols", len(oracle.Symbols())),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return ticker.Run(ctx)
	})

	// Graceful shutdown on signal or when another goroutine fails.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newLogger builds a zap logger bridged to slog. "json" selects the
// production encoder, "console" the development one with colored levels.
func newLogger(level, format string) (*slog.Logger, func() error, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var zc zap.Config
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	zl, err := zc.Build()
	if err != nil {
		return nil, nil, err
	}
	return slog.New(zapslog.NewHandler(zl.Core())), zl.Sync, nil
}
