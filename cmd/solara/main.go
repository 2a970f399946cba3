package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/solara-mfi/solara/internal/app"
	"github.com/solara-mfi/solara/internal/ledger"
	"github.com/solara-mfi/solara/internal/ledger/accounts"
	"github.com/solara-mfi/solara/internal/loans"
	"github.com/solara-mfi/solara/internal/loans/products"
	platformcache "github.com/solara-mfi/solara/internal/platform/cache"
	platformdb "github.com/solara-mfi/solara/internal/platform/db"
	"github.com/solara-mfi/solara/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := platformcache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The product cache degrades to the database without Redis.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	accountsRepo := accounts.NewRepository(pool)
	if cfg.SeedChartOfAccts {
		if err := accountsRepo.Seed(ctx, accounts.Defaults()); err != nil {
			logger.Error("seed chart of accounts", slog.Any("error", err))
			os.Exit(1)
		}
	}

	engine := ledger.NewEngine()
	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, engine)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, accountsRepo)

	productRepo := products.NewRepository(pool)
	productCache := products.NewCache(redisClient, logger)
	productService := products.NewService(productRepo, productCache)

	loansRepo := loans.NewRepository(pool)
	loansService := loans.NewService(loansRepo, productService, engine)
	loansHandler := loans.NewHandler(logger, loansService, productService)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(jobsClient, cfg.DefaultGraceDays, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LoansHandler:  loansHandler,
		LedgerHandler: ledgerHandler,
		JobsHandler:   jobsHandler,
		Pool:          pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}
