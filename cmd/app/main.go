// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-channel-gate/internal/application"
	"telegram-channel-gate/internal/config"
	"telegram-channel-gate/internal/domain/ports/adapter"
	pg "telegram-channel-gate/internal/infra/db/postgres"
	"telegram-channel-gate/internal/infra/i18n"
	"telegram-channel-gate/internal/infra/logging"
	"telegram-channel-gate/internal/infra/metrics"
	red "telegram-channel-gate/internal/infra/redis"
	"telegram-channel-gate/internal/infra/sched"
	tele "telegram-channel-gate/internal/infra/telegram"
	"telegram-channel-gate/internal/infra/web"
	"telegram-channel-gate/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway when no token)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Lang)
	if err != nil {
		logger.Fatal().Err(err).Msg("translator")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	memberRepo := pg.NewMemberRepo(pool)
	codeRepo := pg.NewAccessCodeRepo(pool)
	txManager := pg.NewTxManager(pool)
	stateRepo := red.NewOnboardingStateRepo(redisClient)

	// ---- Timers ----
	registry := sched.NewTimerRegistry(ctx, logger)
	defer registry.Stop()

	// ---- Gateway ----
	var gateway adapter.ChannelGateway
	var bot *tele.ChannelBot
	if cfg.Bot.Token == "" && cfg.Runtime.Dev {
		gateway = tele.NewNoopGateway(logger)
	} else {
		bot, err = tele.NewChannelBot(&cfg.Bot, cfg.Channel.ID, tr, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		gateway = bot
	}

	// ---- Use case + facade ----
	membershipUC := usecase.NewMembershipUseCase(
		memberRepo, codeRepo, txManager, gateway, registry, tr, logger, cfg.Runtime.Dev)
	facade := application.NewBotFacade(membershipUC, stateRepo, tr, logger)

	if bot != nil {
		bot.AttachFacade(facade)
		go func() {
			if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Reconciliation sweep ----
	sweep := sched.NewSweepWorker(
		cfg.Scheduler.SweepInterval(), cfg.Scheduler.SweepStartupDelay(), membershipUC, logger)
	go func() { _ = sweep.Run(ctx) }()

	// ---- Ops server ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL())
	srv := web.NewServer(membershipUC, auth, cfg.Admin.APIKey, cfg.Admin.Port, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("ops server error")
		}
	}()

	logger.Info().Int64("channel_id", cfg.Channel.ID).Msg("bot is running")

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("ops server shutdown")
	}
}
