package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/guestcomms/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime string                    `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker pings the database and Redis.
// Any dependency can be nil; the check will report "not_configured" for nil deps.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redisClient: redisClient, startTime: time.Now()}
}

// Check runs all component checks. The database is required; Redis only
// degrades the status since dispatch correctness does not depend on it.
func (hc *HealthChecker) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	st := HealthStatus{
		Status: "healthy",
		Uptime: time.Since(hc.startTime).Round(time.Second).String(),
		Checks: map[string]ComponentCheck{},
	}

	if hc.db == nil {
		st.Checks["database"] = ComponentCheck{Status: "not_configured"}
	} else {
		st.Checks["database"] = probe(func() error { return hc.db.PingContext(ctx) })
		if st.Checks["database"].Status == "down" {
			st.Status = "unhealthy"
		}
	}

	if hc.redisClient == nil {
		st.Checks["redis"] = ComponentCheck{Status: "not_configured"}
	} else {
		st.Checks["redis"] = probe(func() error { return hc.redisClient.Ping(ctx).Err() })
		if st.Checks["redis"].Status == "down" && st.Status == "healthy" {
			st.Status = "degraded"
		}
	}
	return st
}

func probe(ping func() error) ComponentCheck {
	start := time.Now()
	if err := ping(); err != nil {
		return ComponentCheck{Status: "down", Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Latency: time.Since(start).String()}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.health.Check(r.Context())
	status := http.StatusOK
	if st.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, st)
}
