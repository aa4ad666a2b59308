package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sacco-backend/bootstrap"
	"sacco-backend/internal/application/dividends"
	"sacco-backend/internal/config"
	"sacco-backend/internal/infrastructure/tracing"
	"sacco-backend/internal/interfaces/router"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	bootstrap.ConfigureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OtelEndpoint, "sacco-api")
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup")
	}

	app, svc, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	log.Info().Msg("Database and Redis connected")

	var scheduler *dividends.Scheduler
	if cfg.DividendCron != "" {
		scheduler, err = dividends.NewScheduler(svc.Dividends, cfg.DividendCron)
		if err != nil {
			log.Fatal().Err(err).Str("spec", cfg.DividendCron).Msg("invalid DIVIDEND_DISTRIBUTION_CRON")
		}
		scheduler.Start()
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msgf("Server running at http://localhost:%s (health: /health/json)", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("listener stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn().Err(err).Msg("trace flush")
	}
	_ = rdb.Close()
}
