// Package app wires configuration, storage and services into the object
// graph shared by the server and worker binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/guestcomms/internal/config"
	"github.com/ignite/guestcomms/internal/delivery"
	"github.com/ignite/guestcomms/internal/pkg/distlock"
	"github.com/ignite/guestcomms/internal/pkg/logger"
	"github.com/ignite/guestcomms/internal/repository/postgres"
	"github.com/ignite/guestcomms/internal/service/automation"
	"github.com/ignite/guestcomms/internal/service/message"
	"github.com/ignite/guestcomms/internal/service/scheduler"
	"github.com/ignite/guestcomms/internal/worker"
)

// App holds the wired services.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client // nil when not configured or unreachable

	Automations *automation.Service
	Messages    *message.Service
	Scheduler   *scheduler.Service
	Provider    *delivery.Provider
	Dispatcher  *worker.Dispatcher
	Recovery    *worker.RecoveryWorker
}

// ConfigureLogging applies the logging section of cfg to the global logger.
func ConfigureLogging(cfg config.LoggingConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(cfg.Redact())
}

// OpenDB opens and pings the Postgres pool.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenRedis connects to Redis when url is set. Any failure returns nil so
// the caller falls back to Postgres advisory locks.
func OpenRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		logger.Info("redis not configured, using postgres advisory locks")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to postgres advisory locks", "error", err)
		client.Close()
		return nil
	}
	return client
}

// New wires every service on top of an open database. rdb may be nil.
func New(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	provider, err := delivery.NewFromConfig(ctx, cfg.Delivery)
	if err != nil {
		return nil, fmt.Errorf("delivery provider: %w", err)
	}

	automations := automation.NewService(postgres.NewAutomationRepo(db), postgres.NewPropertyRepo(db))
	messages := message.NewService(postgres.NewMessageRepo(db), automations)
	sched := scheduler.NewService(automations, messages, provider, postgres.NewBookingSnapshots(db), scheduler.Options{
		BatchSize:   cfg.Scheduler.BatchSize,
		Concurrency: cfg.Scheduler.Concurrency,
	})

	lock := distlock.NewLock(rdb, db, worker.DispatchLockKey, cfg.Scheduler.LockTTL())

	return &App{
		Config:      cfg,
		DB:          db,
		Redis:       rdb,
		Automations: automations,
		Messages:    messages,
		Scheduler:   sched,
		Provider:    provider,
		Dispatcher:  worker.NewDispatcher(sched, lock, cfg.Scheduler.TickInterval()),
		Recovery:    worker.NewRecoveryWorker(messages, 0, cfg.Scheduler.StaleAge()),
	}, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
