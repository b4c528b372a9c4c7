package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/guestcomms/internal/app"
	"github.com/ignite/guestcomms/internal/config"
)

func main() {
	log.Println("Starting guest communications dispatch worker...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.ConfigureLogging(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := app.OpenDB(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	a, err := app.New(ctx, cfg, db, app.OpenRedis(ctx, cfg.Redis.URL))
	if err != nil {
		db.Close()
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	if err := a.Dispatcher.Start(); err != nil {
		log.Fatalf("Failed to start dispatcher: %v", err)
	}
	log.Printf("Dispatcher started (tick every %s, batch %d, concurrency %d)",
		cfg.Scheduler.TickInterval(), cfg.Scheduler.BatchSize, cfg.Scheduler.Concurrency)

	go a.Recovery.Start(ctx)
	log.Printf("Recovery worker started (stale after %s)", cfg.Scheduler.StaleAge())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	a.Dispatcher.Stop()
	log.Println("Worker stopped")
}
