package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wavyai/internal/config"
	"wavyai/internal/infra"
	"wavyai/internal/repository"
	"wavyai/internal/router"
	"wavyai/internal/service"
	"wavyai/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger: pretty in dev, JSON in prod
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", cfg.AppName).Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb == nil {
		log.Warn().Msg("REDIS_URL not set: undelivered messages will only be logged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retry := infra.RetryPolicy{Attempts: cfg.HTTPRetries, BaseDelay: time.Second}
	metrics := infra.NewMetrics()
	dlq := worker.NewDLQ(rdb)

	// ── Gateways ─────────────────────────────────────────────────────────────
	twilio := infra.NewTwilioClient(infra.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioWhatsAppFrom,
		BaseURL:    cfg.TwilioBaseURL,
		Region:     cfg.PhoneRegion,
		Timeout:    cfg.HTTPTimeout,
		Retry:      retry,
	}).WithDeadLetter(dlq).WithMetrics(metrics)

	claude := infra.NewAnthropicClient(infra.AnthropicConfig{
		APIKey:  cfg.AnthropicAPIKey,
		Model:   cfg.AnthropicModel,
		BaseURL: cfg.AnthropicBaseURL,
		Timeout: cfg.HTTPTimeout,
		Retry:   retry,
	})

	sheets := infra.NewSpreadsheetGateway(ctx, cfg.GoogleServiceAccountJSON, cfg.HTTPTimeout, retry)

	placesCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("places"))
	places := infra.NewPlacesClient(infra.PlacesConfig{
		APIKey:        cfg.PlacesKey(),
		BaseURL:       cfg.PlacesBaseURL,
		LegacyBaseURL: cfg.PlacesLegacyBaseURL,
		Timeout:       cfg.HTTPTimeout,
		Retry:         retry,
	}, placesCB)

	// ── Repositories ─────────────────────────────────────────────────────────
	businessRepo := repository.NewBusinessRepository(db)
	itemRepo := repository.NewStockItemRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	actionRepo := repository.NewPendingActionRepository(db)
	seenRepo := repository.NewSeenReviewRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	stockSvc := service.NewStockService(businessRepo, itemRepo, movementRepo, actionRepo, sheets, twilio, metrics,
		service.StockConfig{DefaultSheet: cfg.SheetURL, Cooldown: cfg.AlertCooldown})
	reviewSvc := service.NewReviewService(businessRepo, seenRepo, actionRepo, places, claude, twilio, metrics, cfg.ReviewIDScheme)
	assistantSvc := service.NewAssistantService(businessRepo, itemRepo, actionRepo, seenRepo, stockSvc, reviewSvc, claude, twilio, metrics)

	// ── Scheduler ────────────────────────────────────────────────────────────
	loc, _ := cfg.Location() // validated by config.Load
	jobs, err := worker.DefaultJobs(worker.JobsConfig{
		StockInterval:  cfg.StockInterval,
		ReviewInterval: cfg.ReviewInterval,
		WeeklyCron:     cfg.WeeklySummaryCron,
		Location:       loc,
	}, stockSvc, reviewSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid job schedule")
	}
	worker.NewScheduler(cfg.SchedulerPoll, metrics, jobs...).Start(ctx)

	r := router.New(cfg, router.Deps{
		DB:        db,
		Redis:     rdb,
		DLQ:       dlq,
		Metrics:   metrics,
		Breakers:  []*infra.CircuitBreaker{placesCB},
		Assistant: assistantSvc,
		Reviews:   reviewSvc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // /check-reviews runs a full ingestion pass
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("%s listening on :%d", cfg.AppName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
