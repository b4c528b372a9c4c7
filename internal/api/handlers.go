package api

import (
	"context"

	"github.com/ignite/guestcomms/internal/service/automation"
	"github.com/ignite/guestcomms/internal/service/message"
	"github.com/ignite/guestcomms/internal/service/scheduler"
)

// Ticker runs one dispatch tick. Implemented by *worker.Dispatcher so the
// cron entry point shares the worker's lock. ran is false when another
// process was mid-tick.
type Ticker interface {
	RunOnce(ctx context.Context) (res scheduler.TickResult, ran bool, err error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	automations *automation.Service
	messages    *message.Service
	scheduler   *scheduler.Service
	ticker      Ticker
	health      *HealthChecker
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(automations *automation.Service, messages *message.Service, sched *scheduler.Service, ticker Ticker, health *HealthChecker) *Handlers {
	if health == nil {
		health = NewHealthChecker(nil, nil)
	}
	return &Handlers{
		automations: automations,
		messages:    messages,
		scheduler:   sched,
		ticker:      ticker,
		health:      health,
	}
}
