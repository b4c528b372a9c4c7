package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/httputil"
	"github.com/ignite/guestcomms/internal/service/message"
)

// ListMessages handles GET /api/messages?status=&booking_id=&automation_id=
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 50, 500)
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !domain.MessageStatus(status).Valid() {
		httputil.BadRequest(w, "unknown status "+status)
		return
	}

	list, total, err := h.messages.List(r.Context(), accountID(r), message.ListFilter{
		Status:       status,
		BookingID:    q.Get("booking_id"),
		AutomationID: q.Get("automation_id"),
		Limit:        p.Limit,
		Offset:       p.Offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.ScheduledMessage{}
	}
	httputil.OK(w, NewPaginatedResponse(list, p, total))
}

// GetMessage handles GET /api/messages/{id}
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	m, err := h.messages.Get(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, m)
}

// CancelMessage handles POST /api/messages/{id}/cancel
func (h *Handlers) CancelMessage(w http.ResponseWriter, r *http.Request) {
	m, err := h.scheduler.Cancel(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, m)
}

type messageEventRequest struct {
	Type domain.EngagementEvent `json:"type"`
}

// RecordMessageEvent handles POST /api/messages/{id}/events, the webhook
// target for provider delivery receipts and engagement tracking.
func (h *Handlers) RecordMessageEvent(w http.ResponseWriter, r *http.Request) {
	var req messageEventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !req.Type.Valid() {
		httputil.BadRequest(w, "type must be delivered, opened or clicked")
		return
	}
	m, err := h.messages.RecordEvent(r.Context(), accountID(r), chi.URLParam(r, "id"), req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, m)
}
