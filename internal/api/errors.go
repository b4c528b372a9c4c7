package api

import (
	"errors"
	"net/http"

	"github.com/ignite/guestcomms/internal/delivery"
	"github.com/ignite/guestcomms/internal/pkg/httputil"
	"github.com/ignite/guestcomms/internal/service/automation"
	"github.com/ignite/guestcomms/internal/service/message"
	"github.com/ignite/guestcomms/internal/service/scheduler"
)

// writeError maps service errors to HTTP responses. Anything unrecognised
// is logged and returned as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *automation.ValidationError
	switch {
	case errors.As(err, &ve):
		httputil.ErrorWithDetails(w, http.StatusBadRequest, "validation_failed", ve.Error(), ve)
	case errors.Is(err, automation.ErrNotFound),
		errors.Is(err, message.ErrNotFound),
		errors.Is(err, scheduler.ErrBookingNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, message.ErrNotCancellable),
		errors.Is(err, message.ErrInvalidTransition):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, delivery.ErrInvalidRecipient),
		errors.Is(err, scheduler.ErrUnknownTrigger),
		errors.Is(err, scheduler.ErrSnapshotsUnavailable),
		errors.Is(err, message.ErrNoRecipient),
		errors.Is(err, message.ErrEmptyBody):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, scheduler.ErrTestDelivery):
		httputil.BadGateway(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
