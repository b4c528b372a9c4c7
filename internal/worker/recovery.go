package worker

import (
	"context"
	"time"

	"github.com/ignite/guestcomms/internal/pkg/logger"
)

const (
	// DefaultRecoveryInterval is how often we scan for stuck messages.
	DefaultRecoveryInterval = 2 * time.Minute

	// DefaultStaleAge is how long a message can sit in sending before we
	// consider the process that claimed it dead.
	DefaultStaleAge = 15 * time.Minute
)

// StaleReaper fails messages stuck in sending.
type StaleReaper interface {
	FailStale(ctx context.Context, staleAge time.Duration) (int64, error)
}

// RecoveryWorker periodically fails messages that a crashed dispatcher left
// in sending. They are never re-sent, since the provider may already have
// accepted them.
type RecoveryWorker struct {
	reaper   StaleReaper
	interval time.Duration
	staleAge time.Duration
}

// NewRecoveryWorker creates a recovery worker. Zero durations take defaults.
func NewRecoveryWorker(reaper StaleReaper, interval, staleAge time.Duration) *RecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAge
	}
	return &RecoveryWorker{reaper: reaper, interval: interval, staleAge: staleAge}
}

// Start begins the recovery loop. It blocks until ctx is cancelled.
func (rw *RecoveryWorker) Start(ctx context.Context) {
	logger.Info("recovery worker starting", "interval", rw.interval, "stale_age", rw.staleAge)

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("recovery worker stopping")
			return
		case <-ticker.C:
			rw.RecoverOnce(ctx)
		}
	}
}

// RecoverOnce runs a single pass and returns the number of messages failed.
func (rw *RecoveryWorker) RecoverOnce(ctx context.Context) int64 {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := rw.reaper.FailStale(queryCtx, rw.staleAge)
	if err != nil {
		logger.Error("recovery pass failed", "error", err)
		return 0
	}
	return n
}
