package api

import (
	"net/http"

	"github.com/ignite/guestcomms/internal/pkg/httputil"
	"github.com/ignite/guestcomms/internal/service/scheduler"
)

type tickResponse struct {
	scheduler.TickResult
	LockBusy bool `json:"lock_busy,omitempty"`
}

// Tick handles POST /internal/tick. A tick that finds another process
// mid-tick does nothing and reports lock_busy.
func (h *Handlers) Tick(w http.ResponseWriter, r *http.Request) {
	res, ran, err := h.ticker.RunOnce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, tickResponse{TickResult: res, LockBusy: !ran})
}
