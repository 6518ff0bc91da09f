package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nordflytt_backend/internal/adapters"
	"nordflytt_backend/internal/bookings"
	"nordflytt_backend/internal/email"
	"nordflytt_backend/internal/events"
	"nordflytt_backend/internal/geo"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Expiry publishes QuoteExpired, so the worker carries the notification
	// subscribers too; customers are told their quote lapsed regardless of
	// which process noticed it.
	notificationModule := notification.New(sender, log)
	notificationModule.RegisterHandlers(eventBus)

	val := validator.New()

	// Worker-side quote wiring (no HTTP handlers required).
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

	var redisClient *redis.Client
	if opt, err := redis.ParseURL(cfg.GetRedisURL()); err == nil {
		redisClient = redis.NewClient(opt)
		defer func() { _ = redisClient.Close() }()
	}

	geoModule := geo.NewModule(cfg, redisClient, log)
	bookingsModule := bookings.NewModule(pool, log)
	jobsModule := jobs.NewModule(pool, bookingsModule.Service(), rates, eventBus, val, log)

	jobPort := adapters.NewJobAdapter(jobsModule.Service())
	bookingPort := adapters.NewBookingAdapter(bookingsModule.Service())
	quotesModule := quotes.NewModule(pool, calc, allocator, geoModule.Resolver(), jobPort, bookingPort, cfg, eventBus, val, log)

	worker, err := scheduler.NewWorker(cfg, quotesModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
