package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referral_network_backend/internal/contractors"
	"referral_network_backend/internal/events"
	leadrepo "referral_network_backend/internal/leads/repository"
	leadservice "referral_network_backend/internal/leads/service"
	"referral_network_backend/internal/scheduler"
	"referral_network_backend/internal/tenants"
	"referral_network_backend/platform/config"
	"referral_network_backend/platform/db"
	"referral_network_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
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

	// Worker-side lead lifecycle wiring (no HTTP handlers required). The
	// scheduler process never enqueues tasks, so it gets the no-op client.
	tenantSettings := tenants.NewLeadSettingsAdapter(tenants.NewService(tenants.NewRepository(pool)))
	directory := contractors.NewDirectory(contractors.NewRepository(pool))
	leadsSvc := leadservice.New(
		leadrepo.New(pool),
		tenantSettings,
		directory,
		scheduler.NoopScheduler{},
		eventBus,
		log,
	)

	sweeper := scheduler.NewExpirationSweeper(leadsSvc, log, cfg.GetSweepInterval())
	go sweeper.Run(ctx)

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; running sweeper only")
		<-ctx.Done()
		return
	}

	worker, err := scheduler.NewWorker(cfg, leadsSvc, log)
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
