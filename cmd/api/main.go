package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referral_network_backend/internal/contractors"
	"referral_network_backend/internal/events"
	apphttp "referral_network_backend/internal/http"
	"referral_network_backend/internal/http/router"
	"referral_network_backend/internal/leads"
	leadservice "referral_network_backend/internal/leads/service"
	"referral_network_backend/internal/members"
	"referral_network_backend/internal/reporting"
	"referral_network_backend/internal/scheduler"
	"referral_network_backend/internal/tenants"
	"referral_network_backend/internal/trades"
	"referral_network_backend/migrations"
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

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
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

	expirationScheduler, closeScheduler := initExpirationScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	tenantsModule := tenants.NewModule(pool)
	contractorsModule := contractors.NewModule(pool)
	leadsModule := leads.NewModule(
		pool,
		tenants.NewLeadSettingsAdapter(tenantsModule.Service()),
		contractorsModule.Directory(),
		expirationScheduler,
		eventBus,
		log,
	)
	tradesModule := trades.NewModule(pool)
	membersModule := members.NewModule(pool)
	reportingModule := reporting.NewModule(pool)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			tenantsModule,
			contractorsModule,
			leadsModule,
			tradesModule,
			membersModule,
			reportingModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initExpirationScheduler builds the asynq client for one-shot lead
// expiration tasks. Without Redis the API falls back to a no-op client;
// the scheduler process's sweeper still expires overdue leads.
func initExpirationScheduler(cfg config.SchedulerConfig, log *logger.Logger) (leadservice.ExpirationScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; lead expiration relies on the periodic sweeper")
		return scheduler.NoopScheduler{}, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize expiration scheduler client", "error", err)
		return scheduler.NoopScheduler{}, nil
	}

	return client, func() {
		_ = client.Close()
	}
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
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			log.Warn("startup step failed, retrying",
				"step", name,
				"attempt", attempt,
				"max_attempts", attempts,
				"retry_in", delay.String(),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
