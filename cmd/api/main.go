package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nordflytt_backend/internal/adapters"
	"nordflytt_backend/internal/bookings"
	"nordflytt_backend/internal/email"
	"nordflytt_backend/internal/events"
	"nordflytt_backend/internal/geo"
	apphttp "nordflytt_backend/internal/http"
	"nordflytt_backend/internal/http/router"
	"nordflytt_backend/internal/jobs"
	"nordflytt_backend/internal/notification"
	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/internal/quotes"
	"nordflytt_backend/internal/scheduler"
	"nordflytt_backend/platform/config"
	"nordflytt_backend/platform/db"
	"nordflytt_backend/platform/logger"
	"nordflytt_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Redis is optional: without it the distance resolver runs uncached and
	// the on-demand expiry sweep endpoint is unavailable.
	redisClient := initRedis(cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Pricing Core
	// ========================================================================

	rates, err := pricing.NewRateCard(cfg)
	if err != nil {
		log.Error("invalid rate card configuration", "error", err)
		panic("invalid rate card configuration: " + err.Error())
	}
	calc := pricing.NewCalculator(rates, log)

	allocator, err := pricing.NewRUTAllocator(cfg.GetRUTRateBps(), cfg.GetRUTAnnualCapOre())
	if err != nil {
		log.Error("invalid RUT configuration", "error", err)
		panic("invalid RUT configuration: " + err.Error())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(sender, log)
	notificationModule.RegisterHandlers(eventBus)

	geoModule := geo.NewModule(cfg, redisClient, log)
	bookingsModule := bookings.NewModule(pool, log)

	// The bookings service satisfies the jobs module's booking port directly.
	jobsModule := jobs.NewModule(pool, bookingsModule.Service(), rates, eventBus, val, log)

	// Anti-corruption adapters keep quotes decoupled from its sibling modules.
	jobPort := adapters.NewJobAdapter(jobsModule.Service())
	bookingPort := adapters.NewBookingAdapter(bookingsModule.Service())

	quotesModule := quotes.NewModule(pool, calc, allocator, geoModule.Resolver(), jobPort, bookingPort, cfg, eventBus, val, log)

	if redisClient != nil {
		sweepClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize task queue client", "error", err)
			panic("failed to initialize task queue client: " + err.Error())
		}
		defer func() { _ = sweepClient.Close() }()
		quotesModule.SetExpirySweeper(sweepClient)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			geoModule,
			bookingsModule,
			jobsModule,
			quotesModule,
		},
	}

	engine := router.New(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRedis(cfg config.GeoConfig, log *logger.Logger) *redis.Client {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		log.Warn("REDIS_URL not configured; distance cache and on-demand expiry sweep disabled")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}

	return redis.NewClient(opt)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
