package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signupboard/config"
	_ "signupboard/docs"
	"signupboard/internal/adapters/activity"
	"signupboard/internal/adapters/auth"
	"signupboard/internal/adapters/platform"
	"signupboard/internal/adapters/relay"
	"signupboard/internal/adapters/render"
	delivery "signupboard/internal/delivery/http"
	"signupboard/internal/delivery/http/controllers"
	"signupboard/internal/delivery/http/middleware"
	"signupboard/internal/domain"
	"signupboard/internal/metrics"
	"signupboard/internal/repository/postgres"
	"signupboard/internal/repository/redis"
	"signupboard/internal/services"
	"signupboard/internal/timers"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger()
	logger.Info("starting application", slog.String("env", cfg.Environment))

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("failed to reach database", "err", err)
		os.Exit(1)
	}

	eventRepo := postgres.NewEventRepository(db)
	timerRepo := postgres.NewTimerRepository(db)

	redisClient := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()
	cache := redis.NewEventCache(redisClient, eventRepo, cfg.CacheTTL, logger)

	m := metrics.New()

	renderer, err := render.NewRenderer()
	if err != nil {
		logger.Error("failed to load templates", "err", err)
		os.Exit(1)
	}
	chat := platform.NewPlatform(platform.Config{
		Provider: cfg.PlatformProvider,
		BaseURL:  cfg.PlatformBaseURL,
		Token:    cfg.PlatformToken,
		Timeout:  cfg.RequestTimeout,
	}, renderer, logger)

	publisher := activity.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)

	scheduler := timers.NewScheduler(timerRepo, logger, cfg.TimerPollInterval)

	locks := services.NewKeyedLocks()
	router := services.NewControlRouter(m)
	reconciler := services.NewReconciler(eventRepo, router, logger)

	enrollment := services.NewEnrollmentService(eventRepo, cache, locks, publisher, m, logger, cfg.RequestTimeout)
	interactions := services.NewInteractionService(router, enrollment, chat, logger, cfg.ReadyWait)
	events := services.NewEventService(eventRepo, cache, chat, scheduler, router, locks, publisher, logger, cfg.RequestTimeout)
	setup := services.NewSetupService(eventRepo, cache, chat, timers.NewParser(), scheduler, router, publisher, m, logger, services.SetupConfig{
		MaxCategories:     cfg.MaxCategories,
		MaxEventsPerGuild: cfg.MaxEventsPerGuild,
		Timeouts:          services.DefaultStepTimeouts(),
	})
	expiry := services.NewExpiryHandler(eventRepo, cache, chat, renderer, router, locks, publisher, m, logger)
	scheduler.Handle(domain.TimerKindEvent, expiry.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupController := controllers.NewSetupController(ctx, logger, setup, relay.NewHub(), cfg.SetupPromptWait)
	mux := delivery.NewRouter(delivery.Controllers{
		Interaction: controllers.NewInteractionController(logger, interactions),
		Event:       controllers.NewEventController(logger, events),
		Setup:       setupController,
		Health:      controllers.NewHealthController(router),
	}, auth.NewJWTVerifier(cfg.GatewayJWTSecret), m.Handler(), logger)

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(logger, handler)
	handler = middleware.CORS(cfg.CORSAllowedOrigins, handler)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Boards are reattached before the timer loop can finalise any of them.
	// Until then clicks wait and /readyz reports not ready.
	go func() {
		n, err := reconciler.ReconcileUntilReady(ctx, cfg.ReconcileRetryMin, cfg.ReconcileRetryMax)
		if err != nil {
			logger.Error("reconciliation abandoned", "err", err)
			return
		}
		logger.Info("reconciled published boards", slog.Int("messages", n))
		scheduler.Start(ctx)
	}()

	//graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGTERM, syscall.SIGINT)

	sign := <-stopChan
	logger.Info("stopping application", slog.String("signal", sign.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop http server", "err", err)
	}
	cancel()
	setupController.Wait()
	scheduler.Stop()
	if err := publisher.Close(); err != nil {
		logger.Error("failed to close activity publisher", "err", err)
	}
	logger.Info("application stopped", slog.String("signal", sign.String()))
}
