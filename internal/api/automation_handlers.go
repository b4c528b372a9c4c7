package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/httputil"
	"github.com/ignite/guestcomms/internal/service/automation"
	"github.com/ignite/guestcomms/internal/service/scheduler"
)

// ListAutomations handles GET /api/automations?trigger=&channel=&active=
func (h *Handlers) ListAutomations(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 50, 200)
	q := r.URL.Query()
	f := automation.ListFilter{
		Trigger: q.Get("trigger"),
		Channel: q.Get("channel"),
		Limit:   p.Limit,
		Offset:  p.Offset,
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httputil.BadRequest(w, "active must be true or false")
			return
		}
		f.Active = &active
	}

	list, total, err := h.automations.List(r.Context(), accountID(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.Automation{}
	}
	httputil.OK(w, NewPaginatedResponse(list, p, total))
}

// CreateAutomation handles POST /api/automations
func (h *Handlers) CreateAutomation(w http.ResponseWriter, r *http.Request) {
	var in automation.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	a, err := h.automations.Create(r.Context(), accountID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, a)
}

// GetAutomation handles GET /api/automations/{id}
func (h *Handlers) GetAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := h.automations.Get(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, a)
}

// UpdateAutomation handles PUT /api/automations/{id}
func (h *Handlers) UpdateAutomation(w http.ResponseWriter, r *http.Request) {
	var u automation.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	a, err := h.automations.Update(r.Context(), accountID(r), chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, a)
}

// DeleteAutomation handles DELETE /api/automations/{id}
func (h *Handlers) DeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if err := h.automations.Delete(r.Context(), accountID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ToggleAutomation handles POST /api/automations/{id}/toggle
func (h *Handlers) ToggleAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	active, err := h.automations.Toggle(r.Context(), accountID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"id": id, "active": active})
}

type testAutomationRequest struct {
	Recipient domain.Recipient      `json:"recipient"`
	BookingID string                `json:"booking_id"`
	Snapshot  *domain.EventSnapshot `json:"snapshot"`
}

// TestAutomation handles POST /api/automations/{id}/test. The rendered
// message goes straight to the given recipient and is not stored.
func (h *Handlers) TestAutomation(w http.ResponseWriter, r *http.Request) {
	var req testAutomationRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !req.Recipient.HasContact() {
		httputil.BadRequest(w, "recipient needs an email address or phone number")
		return
	}
	res, err := h.scheduler.TestAutomation(r.Context(), accountID(r), chi.URLParam(r, "id"), scheduler.TestRequest{
		Recipient: req.Recipient,
		BookingID: req.BookingID,
		Snapshot:  req.Snapshot,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}
