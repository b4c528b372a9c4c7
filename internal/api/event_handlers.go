package api

import (
	"net/http"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/httputil"
)

type eventRequest struct {
	Trigger  domain.TriggerType   `json:"trigger"`
	Snapshot domain.EventSnapshot `json:"snapshot"`
}

type eventResponse struct {
	Scheduled []domain.ScheduledMessage `json:"scheduled"`
	Count     int                       `json:"count"`
}

// HandleEvent handles POST /api/events. The host application calls it when
// a booking, stay or payment event fires.
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	scheduled, err := h.scheduler.ScheduleForEvent(r.Context(), accountID(r), req.Trigger, req.Snapshot)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, eventResponse{Scheduled: scheduled, Count: len(scheduled)})
}
