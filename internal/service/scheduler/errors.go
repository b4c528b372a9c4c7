package scheduler

import "errors"

var (
	ErrUnknownTrigger       = errors.New("unknown trigger type")
	ErrSnapshotsUnavailable = errors.New("booking snapshots are not available")
	ErrTestDelivery         = errors.New("test delivery failed")
	ErrBookingNotFound      = errors.New("booking not found")
)
