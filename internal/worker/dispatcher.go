package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/guestcomms/internal/pkg/distlock"
	"github.com/ignite/guestcomms/internal/pkg/logger"
	"github.com/ignite/guestcomms/internal/service/scheduler"
)

const (
	// DefaultTickInterval is how often due messages are dispatched.
	DefaultTickInterval = time.Minute

	// DispatchLockKey names the lock shared by every dispatcher process.
	DispatchLockKey = "dispatch-tick"

	// tickTimeout bounds one tick so a hung provider cannot pin the lock.
	tickTimeout = 5 * time.Minute
)

// Processor dispatches one batch of due messages.
type Processor interface {
	ProcessPending(ctx context.Context) (scheduler.TickResult, error)
}

// DispatchStats are cumulative counters since Start.
type DispatchStats struct {
	Ticks     int64 `json:"ticks"`
	Skipped   int64 `json:"skipped_ticks"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Errors    int64 `json:"errors"`
}

// Dispatcher runs ProcessPending on a fixed interval. When a lock is set,
// a tick that finds another process mid-tick is skipped; overlapping ticks
// remain safe without it because each message is claimed individually.
type Dispatcher struct {
	processor Processor
	lock      distlock.DistLock
	interval  time.Duration

	ticks     int64
	skipped   int64
	succeeded int64
	failed    int64
	errors    int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewDispatcher creates a dispatcher. lock may be nil.
func NewDispatcher(processor Processor, lock distlock.DistLock, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Dispatcher{processor: processor, lock: lock, interval: interval}
}

// Start begins the dispatch loop. The first tick runs immediately.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(context.Background())

	logger.Info("dispatcher starting", "interval", d.interval, "locked", d.lock != nil)
	d.wg.Add(1)
	go d.loop()
	return nil
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	s := d.Stats()
	logger.Info("dispatcher stopped", "ticks", s.Ticks, "succeeded", s.Succeeded, "failed", s.Failed)
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	d.tick()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *Dispatcher) tick() {
	ctx, cancel := context.WithTimeout(d.ctx, tickTimeout)
	defer cancel()
	if _, _, err := d.RunOnce(ctx); err != nil {
		logger.Error("dispatch tick failed", "error", err)
	}
}

// RunOnce executes a single tick. ran is false when another process held
// the dispatch lock and nothing was attempted.
func (d *Dispatcher) RunOnce(ctx context.Context) (res scheduler.TickResult, ran bool, err error) {
	run := func(ctx context.Context) error {
		res, err = d.processor.ProcessPending(ctx)
		return err
	}

	if d.lock == nil {
		ran = true
		err = run(ctx)
	} else {
		ran, err = distlock.Run(ctx, d.lock, run)
	}

	switch {
	case err != nil:
		atomic.AddInt64(&d.errors, 1)
		return res, ran, err
	case !ran:
		atomic.AddInt64(&d.skipped, 1)
		logger.Debug("dispatch tick skipped, lock held elsewhere")
		return res, false, nil
	}
	atomic.AddInt64(&d.ticks, 1)
	atomic.AddInt64(&d.succeeded, int64(res.Succeeded))
	atomic.AddInt64(&d.failed, int64(res.Failed))
	if res.Processed > 0 {
		logger.Info("dispatch tick complete",
			"processed", res.Processed, "succeeded", res.Succeeded, "failed", res.Failed, "skipped", res.Skipped)
	}
	return res, true, nil
}

// Stats returns cumulative counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Ticks:     atomic.LoadInt64(&d.ticks),
		Skipped:   atomic.LoadInt64(&d.skipped),
		Succeeded: atomic.LoadInt64(&d.succeeded),
		Failed:    atomic.LoadInt64(&d.failed),
		Errors:    atomic.LoadInt64(&d.errors),
	}
}
