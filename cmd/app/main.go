package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership-settlement/internal/config"
	pg "membership-settlement/internal/infra/db/postgres"
	"membership-settlement/internal/infra/logging"
	"membership-settlement/internal/infra/metrics"
	red "membership-settlement/internal/infra/redis"
	"membership-settlement/internal/infra/sched"
	"membership-settlement/internal/infra/telegram"
	"membership-settlement/internal/infra/web"
	"membership-settlement/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redis lock required)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	var locker red.Locker = red.NoopLocker{}
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
	} else if !cfg.Runtime.Dev {
		logger.Fatal().Msg("redis.url is required outside developer mode")
	}

	// ---- Repositories ----
	orderRepo := pg.NewOrderRepo(pool)
	linkRepo := pg.NewPaymentLinkRepo(pool)
	membershipRepo := pg.NewMembershipRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	catalogRepo := pg.NewCatalogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	settlementUC := usecase.NewSettlementUseCase(orderRepo, linkRepo, membershipRepo, subRepo, catalogRepo, tm, logger)

	// ---- HTTP ----
	srv := web.NewServer(settlementUC, orderRepo, membershipRepo, subRepo, locker, &cfg.Web, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Web.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Workers ----
	reconciler := sched.NewTransferReconciler(
		settlementUC, orderRepo, linkRepo, membershipRepo, subRepo,
		cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileStale, logger,
	)
	go reconciler.Start(ctx)

	renewals := sched.NewRenewalWorker(subRepo, orderRepo, tm, cfg.Scheduler.RenewalInterval, logger)
	go renewals.Start(ctx)

	// ---- Telegram ----
	if cfg.Bot.Enabled {
		bot, err := telegram.NewOperatorBot(&cfg.Bot, settlementUC, subRepo, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		go func() {
			if err := bot.StartPolling(ctx); err != nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
